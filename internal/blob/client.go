// Package blob is the HTTP client for the external blob storage service
// that holds attachment bytes for vision-capable backends.
package blob

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 60 * time.Second

// Client uploads objects and mints presigned download URLs. It implements
// pipeline.BlobStore.
type Client struct {
	baseURL    string
	bucket     string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a blob storage client for one bucket.
func NewClient(log *slog.Logger, baseURL, bucket, token string) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		bucket:     bucket,
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     log.With(slog.String("component", "blob_client")),
	}
}

type uploadRequest struct {
	Bucket        string `json:"bucket"`
	Key           string `json:"key"`
	ContentBase64 string `json:"content_base64"`
	Mime          string `json:"mime"`
}

// Upload stores an object under the given key.
func (c *Client) Upload(ctx context.Context, key string, data []byte, mime string) error {
	payload := uploadRequest{
		Bucket:        c.bucket,
		Key:           key,
		ContentBase64: base64.StdEncoding.EncodeToString(data),
		Mime:          mime,
	}
	if err := c.postJSON(ctx, "/objects", payload, nil); err != nil {
		return fmt.Errorf("blob upload %s: %w", key, err)
	}
	return nil
}

type presignRequest struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expires_in"`
}

type presignResponse struct {
	URL string `json:"url"`
}

// Presign returns a time-limited download URL for a stored object.
func (c *Client) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	payload := presignRequest{
		Bucket:    c.bucket,
		Key:       key,
		ExpiresIn: int(ttl.Seconds()),
	}
	var resp presignResponse
	if err := c.postJSON(ctx, "/presign", payload, &resp); err != nil {
		return "", fmt.Errorf("blob presign %s: %w", key, err)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("blob presign %s: response carried no url", key)
	}
	return resp.URL, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
