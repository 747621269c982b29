package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"boardgen/internal/domain"
)

func newOpenAITestServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %q, want suffix /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer sk-test")
		}
		raw, _ := io.ReadAll(r.Body)
		if captured != nil {
			_ = json.Unmarshal(raw, captured)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const completionBody = `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"A calm fox"}}]}`

func TestOpenAICompleterSendsImagesBeforeText(t *testing.T) {
	var captured map[string]any
	srv := newOpenAITestServer(t, http.StatusOK, completionBody, &captured)
	c, err := NewOpenAICompleter(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("NewOpenAICompleter: %v", err)
	}

	out, err := c.Complete(context.Background(), Request{
		SystemPrompt: "sys",
		Text:         "analyze this draft",
		Images:       []string{"https://img/board.png"},
		MaxTokens:    1024,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "A calm fox" {
		t.Fatalf("out = %q, want %q", out, "A calm fox")
	}
	if captured["model"] != "gpt-4o" {
		t.Fatalf("model = %v, want gpt-4o", captured["model"])
	}
	if captured["max_tokens"] != float64(1024) {
		t.Fatalf("max_tokens = %v, want 1024", captured["max_tokens"])
	}
	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	user, _ := msgs[1].(map[string]any)
	parts, _ := user["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("user parts = %d, want 2", len(parts))
	}
	first, _ := parts[0].(map[string]any)
	if first["type"] != "image_url" {
		t.Fatalf("first part type = %v, want image_url", first["type"])
	}
	second, _ := parts[1].(map[string]any)
	if second["text"] != "analyze this draft" {
		t.Fatalf("second part text = %v", second["text"])
	}
}

func TestOpenAICompleterParsesToolCalls(t *testing.T) {
	body := `{"id":"c2","object":"chat.completion","created":1,"model":"gpt-4o","choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[{"id":"t1","type":"function","function":{"name":"edit_image","arguments":"{\"prompt\":\"add wings\",\"imageUrl\":\"https://img/a.png\"}"}}]}}]}`
	var captured map[string]any
	srv := newOpenAITestServer(t, http.StatusOK, body, &captured)
	c, err := NewOpenAICompleter(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewOpenAICompleter: %v", err)
	}
	reply, err := c.CompleteWithFunctions(context.Background(), Request{Text: "hi"}, []Function{{
		Name:        "edit_image",
		Description: "edit",
		Parameters:  map[string]any{"type": "object"},
	}})
	if err != nil {
		t.Fatalf("CompleteWithFunctions: %v", err)
	}
	if len(reply.Calls) != 1 || reply.Calls[0].Name != "edit_image" {
		t.Fatalf("calls = %+v, want one edit_image", reply.Calls)
	}
	if !strings.Contains(string(reply.Calls[0].Arguments), "add wings") {
		t.Fatalf("arguments = %s", reply.Calls[0].Arguments)
	}
	tools, _ := captured["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %d, want 1", len(tools))
	}
}

func TestOpenAICompleterUpstreamError(t *testing.T) {
	srv := newOpenAITestServer(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, nil)
	c, err := NewOpenAICompleter(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewOpenAICompleter: %v", err)
	}
	_, err = c.Complete(context.Background(), Request{Text: "hi"})
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("err = %v, want *domain.UpstreamError", err)
	}
	if upstream.Status != http.StatusInternalServerError {
		t.Fatalf("Status = %d, want 500", upstream.Status)
	}
}

func TestNewOpenAICompleterRequiresKey(t *testing.T) {
	if _, err := NewOpenAICompleter(OpenAIOptions{APIKey: "  "}); err == nil {
		t.Fatalf("expected error for missing key")
	}
}
