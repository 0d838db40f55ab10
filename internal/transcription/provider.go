package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Result is what a speech-to-text provider returns for one recording.
type Result struct {
	Transcript string
	Duration   float64 // seconds
}

// Provider converts consultation audio to text. Synchronous from the
// core's perspective; failures are terminal here.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (*Result, error)
}

const DefaultDeepgramBaseURL = "https://api.deepgram.com/v1"

// DeepgramProvider posts raw audio to the Deepgram listen API.
type DeepgramProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewDeepgramProvider(apiKey, baseURL string) *DeepgramProvider {
	if baseURL == "" {
		baseURL = DefaultDeepgramBaseURL
	}
	return &DeepgramProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (p *DeepgramProvider) Transcribe(ctx context.Context, audio []byte, mimeType string) (*Result, error) {
	params := url.Values{
		"model":     {"general"},
		"language":  {"en-US"},
		"punctuate": {"true"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/listen?"+params.Encode(), bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", mimeType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("deepgram API status %d: %s", resp.StatusCode, snippet)
	}

	var parsed deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return nil, fmt.Errorf("no transcript in response")
	}

	return &Result{
		Transcript: parsed.Results.Channels[0].Alternatives[0].Transcript,
		Duration:   parsed.Metadata.Duration,
	}, nil
}
