package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChatClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "model-a" || len(req.Messages) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		if req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %q", req.ResponseFormat.Type)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"ok":true}`}},
			},
		})
	}))
	defer server.Close()

	client := NewChatClient(server.URL, "test-key", time.Second, 0.7, 500)
	content, err := client.Complete(context.Background(), "model-a", "system", "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestChatClientNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewChatClient(server.URL, "test-key", time.Second, 0.7, 500)
	if _, err := client.Complete(context.Background(), "model-a", "s", "u"); err == nil {
		t.Fatalf("expected error on 429")
	}
}

func TestChatClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client := NewChatClient(server.URL, "test-key", time.Second, 0.7, 500)
	if _, err := client.Complete(context.Background(), "model-a", "s", "u"); err == nil {
		t.Fatalf("expected error on empty choices")
	}
}
