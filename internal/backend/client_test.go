package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/botdock/botdock/internal/backend"
	"github.com/botdock/botdock/internal/pipeline"
)

func TestClient_TextChat(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat-messages" {
			t.Errorf("path = %q, want /chat-messages", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization = %q", got)
		}
		var req struct {
			Query        string `json:"query"`
			ResponseMode string `json:"response_mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "hello" || req.ResponseMode != "blocking" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"answer": "hi there"})
	}))
	defer srv.Close()

	c := backend.NewClient(nil)
	answer, err := c.TextChat(context.Background(), srv.URL, "secret-token", "hello")
	if err != nil {
		t.Fatalf("TextChat() error = %v", err)
	}
	if answer != "hi there" {
		t.Fatalf("answer = %q, want %q", answer, "hi there")
	}
}

func TestClient_TextChatGatewayError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := backend.NewClient(nil)
	if _, err := c.TextChat(context.Background(), srv.URL, "tok", "hello"); err == nil {
		t.Fatal("TextChat() error = nil, want status error")
	} else if !strings.Contains(err.Error(), "502") {
		t.Fatalf("error = %v, want the status code", err)
	}
}

func TestClient_VisionChat(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content []struct {
					Type     string `json:"type"`
					Text     string `json:"text"`
					ImageURL *struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4o" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 1 || len(req.Messages[0].Content) != 2 {
			t.Fatalf("messages = %+v", req.Messages)
		}
		img := req.Messages[0].Content[1]
		if img.Type != "image_url" || img.ImageURL == nil || !strings.HasPrefix(img.ImageURL.URL, "data:image/png;base64,") {
			t.Errorf("image part = %+v", img)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "a png header"}},
			},
		})
	}))
	defer srv.Close()

	c := backend.NewClient(nil)
	parts := []pipeline.ContentPart{
		pipeline.TextPart("what is this"),
		{Type: pipeline.PartImage, MimeType: "image/png", Data: "aGVsbG8="},
	}
	answer, err := c.VisionChat(context.Background(), srv.URL, "gpt-4o", parts)
	if err != nil {
		t.Fatalf("VisionChat() error = %v", err)
	}
	if answer != "a png header" {
		t.Fatalf("answer = %q", answer)
	}
}

func TestClient_VisionChatEmptyChoices(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := backend.NewClient(nil)
	if _, err := c.VisionChat(context.Background(), srv.URL, "gpt-4o", []pipeline.ContentPart{pipeline.TextPart("hi")}); err == nil {
		t.Fatal("VisionChat() error = nil, want no-choices error")
	}
}
