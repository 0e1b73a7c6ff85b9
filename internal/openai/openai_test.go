package openai

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ctxpkg "github.com/stupiduntilnot/relaybot/internal/context"
)

func newTestClient(url string) *Client {
	return NewClient("test-key", url, "test-model", 1000, 0.7, 1.0, 5*time.Second)
}

func TestChatCompletion_WithUsage(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Hello!"}},
			},
			"usage": map[string]any{
				"prompt_tokens":     42,
				"completion_tokens": 7,
				"total_tokens":      49,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.ChatCompletion([]ctxpkg.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatal(err)
	}

	if result.Content != "Hello!" {
		t.Errorf("expected content 'Hello!', got %q", result.Content)
	}
	if result.PromptTokens != 42 || result.CompletionTokens != 7 || result.TotalTokens != 49 {
		t.Errorf("unexpected usage: %+v", result)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("expected model test-model, got %q", gotReq.Model)
	}
	if gotReq.MaxTokens != 1000 {
		t.Errorf("expected max_tokens 1000, got %d", gotReq.MaxTokens)
	}
	if gotReq.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", gotReq.Temperature)
	}
	if gotReq.TopP != 1.0 {
		t.Errorf("expected top_p 1.0, got %v", gotReq.TopP)
	}
}

func TestChatCompletion_NoUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "World"}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.ChatCompletion([]ctxpkg.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatal(err)
	}

	if result.Content != "World" {
		t.Errorf("expected 'World', got %q", result.Content)
	}
	if result.PromptTokens != 0 || result.CompletionTokens != 0 {
		t.Errorf("expected zero usage, got %+v", result)
	}
}

func TestChatCompletion_EmptyChoicesReturnsEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 0, "total_tokens": 10},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.ChatCompletion([]ctxpkg.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatal(err)
	}

	// No substitution here; the orchestrator decides the fallback.
	if result.Content != "" {
		t.Errorf("expected empty content, got %q", result.Content)
	}
	if result.PromptTokens != 10 {
		t.Errorf("expected 10 prompt tokens, got %d", result.PromptTokens)
	}
}

func TestChatCompletion_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ChatCompletion([]ctxpkg.Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestChatCompletion_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json at all")
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ChatCompletion([]ctxpkg.Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error for malformed response body")
	}
}
