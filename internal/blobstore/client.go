// Package blobstore provides an HTTP client for the recording object store.
package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/mmiprep/assessment-worker/internal/config"
)

// MaxObjectBytes is the transcriber's hard upload limit. Objects above this
// size can never be processed, so the download is aborted early.
const MaxObjectBytes = 25 << 20

var (
	// ErrTooLarge indicates the object exceeds MaxObjectBytes.
	ErrTooLarge = errors.New("object exceeds 25 MiB size limit")
	// ErrEmptyObject indicates a zero-byte object.
	ErrEmptyObject = errors.New("object is empty")
	// ErrUnexpectedStatus indicates a non-2xx response from the store.
	ErrUnexpectedStatus = errors.New("unexpected blob store status")
)

// supportedExtensions is the audio/video container set the transcriber accepts.
var supportedExtensions = map[string]struct{}{
	".flac": {}, ".m4a": {}, ".mp3": {}, ".mp4": {}, ".mpeg": {},
	".mpga": {}, ".oga": {}, ".ogg": {}, ".wav": {}, ".webm": {},
}

// IsSupportedExtension reports whether the object name carries a container
// extension the transcriber accepts.
func IsSupportedExtension(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	_, ok := supportedExtensions[ext]
	return ok
}

// Client talks to the blob store over HTTP.
type Client struct {
	baseURL    string
	bucket     string
	token      string
	httpClient *http.Client
}

// NewClient creates a blob store client.
func NewClient(cfg config.BlobConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		bucket:     cfg.Bucket,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// List returns the names of objects under the given prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/%s/list?prefix=%s", c.baseURL, c.bucket, url.QueryEscape(prefix))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create list request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d listing prefix %q", ErrUnexpectedStatus, resp.StatusCode, prefix)
	}

	var objects []struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&objects); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}

	names := make([]string, 0, len(objects))
	for _, obj := range objects {
		names = append(names, obj.Name)
	}
	return names, nil
}

// Download fetches an object's raw bytes. Zero-byte and oversized objects are
// rejected without buffering the full body.
func (c *Client) Download(ctx context.Context, objectPath string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s/object/%s", c.baseURL, c.bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", objectPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d downloading %q", ErrUnexpectedStatus, resp.StatusCode, objectPath)
	}
	if resp.ContentLength > MaxObjectBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, objectPath, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", objectPath, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyObject, objectPath)
	}
	if len(data) > MaxObjectBytes {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, objectPath)
	}
	return data, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
