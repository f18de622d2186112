package transcriber

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mmiprep/assessment-worker/internal/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.TranscriberConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "whisper-1",
	})
}

func TestClient_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("parse multipart form: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("unexpected model %q", got)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("unexpected response_format %q", got)
		}
		if got := r.FormValue("timestamp_granularities[]"); got != "segment" {
			t.Errorf("unexpected granularity %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "attempt.mp4" {
			t.Errorf("unexpected filename %q", header.Filename)
		}

		w.Write([]byte(`{
			"text": " Hello, my answer has two parts. ",
			"segments": [
				{"start": 0, "end": 4.5, "text": "Hello,"},
				{"start": 4.5, "end": 9.1, "text": "my answer has two parts."}
			]
		}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Transcribe(context.Background(), []byte("bytes"), "attempt.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "Hello, my answer has two parts." {
		t.Errorf("expected trimmed text, got %q", result.Text)
	}
	if len(result.Segments) != 2 || result.Segments[1].End != 9.1 {
		t.Errorf("unexpected segments %+v", result.Segments)
	}
}

func TestClient_TranscribeEmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text": "  ", "segments": []}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Transcribe(context.Background(), []byte("bytes"), "attempt.mp4")
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("expected ErrEmptyTranscript, got %v", err)
	}
}

func TestClient_TranscribeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "Unrecognized file format.", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Transcribe(context.Background(), []byte("bytes"), "attempt.mp4")
	if err == nil || !strings.Contains(err.Error(), "Unrecognized file format") {
		t.Errorf("expected the api error message surfaced, got %v", err)
	}
}

func TestClient_TranscribeMissingKey(t *testing.T) {
	client := NewClient(config.TranscriberConfig{BaseURL: "http://localhost", Model: "whisper-1"})

	_, err := client.Transcribe(context.Background(), []byte("bytes"), "attempt.mp4")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}
