// Package backend implements the HTTP clients for the two answering
// backends: the bot's text gateway and the OpenAI-compatible vision proxy.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/botdock/botdock/internal/pipeline"
)

const requestTimeout = 120 * time.Second

// Client talks to bot backends over HTTP. It implements pipeline.BackendClient.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a backend client.
func NewClient(log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     log.With(slog.String("component", "backend_client")),
	}
}

type textChatRequest struct {
	Inputs       map[string]string `json:"inputs"`
	Query        string            `json:"query"`
	ResponseMode string            `json:"response_mode"`
	User         string            `json:"user"`
}

type textChatResponse struct {
	Answer string `json:"answer"`
}

// TextChat sends plain text to the bot's gateway and returns the answer.
func (c *Client) TextChat(ctx context.Context, address, token, text string) (string, error) {
	payload := textChatRequest{
		Inputs:       map[string]string{},
		Query:        text,
		ResponseMode: "blocking",
		User:         "botdock",
	}
	url := strings.TrimSuffix(address, "/") + "/chat-messages"

	var resp textChatResponse
	if err := c.postJSON(ctx, url, token, payload, &resp); err != nil {
		return "", fmt.Errorf("text gateway: %w", err)
	}
	return resp.Answer, nil
}

type visionChatRequest struct {
	Model    string          `json:"model"`
	Messages []visionMessage `json:"messages"`
}

type visionMessage struct {
	Role    string       `json:"role"`
	Content []visionPart `json:"content"`
}

type visionPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *visionImageURL `json:"image_url,omitempty"`
	File     *visionFileRef  `json:"file,omitempty"`
}

type visionImageURL struct {
	URL string `json:"url"`
}

type visionFileRef struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

type visionChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// VisionChat sends multi-modal content parts to the OpenAI-compatible vision
// proxy and returns the first choice's content.
func (c *Client) VisionChat(ctx context.Context, proxyAddress, model string, parts []pipeline.ContentPart) (string, error) {
	content := make([]visionPart, 0, len(parts))
	for _, part := range parts {
		switch part.Type {
		case pipeline.PartText:
			content = append(content, visionPart{Type: "text", Text: part.Text})
		case pipeline.PartImage:
			url := part.URL
			if url == "" {
				url = fmt.Sprintf("data:%s;base64,%s", part.MimeType, part.Data)
			}
			content = append(content, visionPart{Type: "image_url", ImageURL: &visionImageURL{URL: url}})
		case pipeline.PartFile:
			content = append(content, visionPart{Type: "file", File: &visionFileRef{URL: part.URL, Name: part.Name}})
		}
	}
	payload := visionChatRequest{
		Model:    model,
		Messages: []visionMessage{{Role: "user", Content: content}},
	}
	url := strings.TrimSuffix(proxyAddress, "/") + "/chat/completions"

	var resp visionChatResponse
	if err := c.postJSON(ctx, url, "", payload, &resp); err != nil {
		return "", fmt.Errorf("vision proxy: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision proxy: response carried no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) postJSON(ctx context.Context, url, token string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncateBody(data []byte) string {
	const max = 512
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
