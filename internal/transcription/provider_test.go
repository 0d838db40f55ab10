package transcription

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDeepgramProviderTranscribe(t *testing.T) {
	const body = `{
		"metadata": {"duration": 93.2},
		"results": {"channels": [{"alternatives": [{"transcript": "hello doctor"}]}]}
	}`

	t.Run("success", func(t *testing.T) {
		var gotAuth, gotContentType, gotQuery string
		var gotAudio []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/listen" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			gotAuth = r.Header.Get("Authorization")
			gotContentType = r.Header.Get("Content-Type")
			gotQuery = r.URL.RawQuery
			gotAudio, _ = io.ReadAll(r.Body)
			io.WriteString(w, body)
		}))
		defer srv.Close()

		p := NewDeepgramProvider("dg_key", srv.URL)
		result, err := p.Transcribe(context.Background(), []byte("audio-bytes"), "audio/webm")
		if err != nil {
			t.Fatalf("transcribe: %v", err)
		}
		if result.Transcript != "hello doctor" {
			t.Errorf("transcript = %q", result.Transcript)
		}
		if result.Duration != 93.2 {
			t.Errorf("duration = %v", result.Duration)
		}
		if gotAuth != "Token dg_key" {
			t.Errorf("auth header = %q", gotAuth)
		}
		if gotContentType != "audio/webm" {
			t.Errorf("content type = %q", gotContentType)
		}
		for _, param := range []string{"model=general", "punctuate=true"} {
			if !strings.Contains(gotQuery, param) {
				t.Errorf("query %q missing %q", gotQuery, param)
			}
		}
		if string(gotAudio) != "audio-bytes" {
			t.Errorf("audio body = %q", gotAudio)
		}
	})

	t.Run("api error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"err":"unauthorized"}`, http.StatusUnauthorized)
		}))
		defer srv.Close()

		p := NewDeepgramProvider("bad_key", srv.URL)
		_, err := p.Transcribe(context.Background(), []byte("audio"), "audio/webm")
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "401") {
			t.Errorf("error %q should carry the status", err)
		}
	})

	t.Run("empty transcript payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"metadata": {"duration": 0}, "results": {"channels": []}}`)
		}))
		defer srv.Close()

		p := NewDeepgramProvider("dg_key", srv.URL)
		if _, err := p.Transcribe(context.Background(), []byte("audio"), "audio/webm"); err == nil {
			t.Fatal("expected error for missing transcript")
		}
	})
}
