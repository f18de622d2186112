// Package transcriber provides an HTTP client for the speech-to-text service.
// The service exposes an OpenAI-compatible audio transcription endpoint.
package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/mmiprep/assessment-worker/internal/config"
	"github.com/mmiprep/assessment-worker/internal/domain"
)

var (
	// ErrEmptyTranscript indicates the service returned no transcript text.
	ErrEmptyTranscript = errors.New("transcriber returned empty transcript")
	// ErrMissingAPIKey indicates the client is not configured with a key.
	ErrMissingAPIKey = errors.New("transcriber api key is not configured")
)

// Client calls the transcription service.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates a transcriber client.
func NewClient(cfg config.TranscriberConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Transcribe uploads raw audio/video bytes and returns the transcript with
// segment-level timestamps.
func (c *Client) Transcribe(ctx context.Context, data []byte, filename string) (*domain.Transcription, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create multipart file: %w", err)
	}
	if _, err = part.Write(data); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if err = writer.WriteField("model", c.model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	if err = writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("write response_format field: %w", err)
	}
	if err = writer.WriteField("timestamp_granularities[]", "segment"); err != nil {
		return nil, fmt.Errorf("write granularity field: %w", err)
	}
	if err = writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, fmt.Errorf("create transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.decodeAPIError(resp)
	}

	var payload struct {
		Text     string                     `json:"text"`
		Segments []domain.TranscriptSegment `json:"segments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}
	if strings.TrimSpace(payload.Text) == "" {
		return nil, ErrEmptyTranscript
	}

	return &domain.Transcription{
		Text:     strings.TrimSpace(payload.Text),
		Segments: payload.Segments,
	}, nil
}

func (c *Client) decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("transcriber api error: status %d type %s message %s",
			resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
	}
	return fmt.Errorf("transcriber api error: status %d body %s", resp.StatusCode, string(body))
}
