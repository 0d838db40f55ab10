package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultDailyBaseURL = "https://api.daily.co/v1"

// DailyProvider talks to the daily.co REST API.
type DailyProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewDailyProvider(apiKey, baseURL string) *DailyProvider {
	if baseURL == "" {
		baseURL = DefaultDailyBaseURL
	}
	return &DailyProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type dailyRoomRequest struct {
	Name       string          `json:"name"`
	Properties dailyProperties `json:"properties"`
}

type dailyTokenRequest struct {
	Properties dailyProperties `json:"properties"`
}

type dailyProperties struct {
	RoomName   string `json:"room_name,omitempty"`
	EnableChat bool   `json:"enable_chat,omitempty"`
	Exp        int64  `json:"exp"`
}

type dailyRoomResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type dailyTokenResponse struct {
	Token string `json:"token"`
}

func (p *DailyProvider) CreateRoom(ctx context.Context, nameHint string, expiry time.Time) (string, error) {
	req := dailyRoomRequest{
		Name: nameHint,
		Properties: dailyProperties{
			EnableChat: true,
			Exp:        expiry.Unix(),
		},
	}

	var resp dailyRoomResponse
	if err := p.post(ctx, "/rooms", req, &resp); err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	if resp.Name == "" {
		return "", fmt.Errorf("create room: empty room name in response")
	}
	return resp.Name, nil
}

func (p *DailyProvider) CreateToken(ctx context.Context, roomID string, expiry time.Time) (string, error) {
	req := dailyTokenRequest{
		Properties: dailyProperties{
			RoomName: roomID,
			Exp:      expiry.Unix(),
		},
	}

	var resp dailyTokenResponse
	if err := p.post(ctx, "/meeting-tokens", req, &resp); err != nil {
		return "", fmt.Errorf("create token: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("create token: empty token in response")
	}
	return resp.Token, nil
}

func (p *DailyProvider) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("daily API status %d: %s", resp.StatusCode, snippet)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
