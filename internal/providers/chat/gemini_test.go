package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"boardgen/internal/domain"
	"boardgen/internal/providers/gemini"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestGeminiCompleterBuildsParts(t *testing.T) {
	var payload gemini.Request
	c, err := NewGeminiCompleter(GeminiOptions{
		APIKey: "g-key",
		Model:  "gemini-test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
				t.Errorf("path = %q", r.URL.Path)
			}
			if got := r.Header.Get("x-goog-api-key"); got != "g-key" {
				t.Errorf("api key header = %q, want %q", got, "g-key")
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode: %v", err)
			}
			return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"A fox "},{"text":"figurine"}]}}]}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewGeminiCompleter: %v", err)
	}

	out, err := c.Complete(context.Background(), Request{
		SystemPrompt: "sys",
		Text:         "role1 text",
		Images:       []string{"data:image/jpeg;base64,QUJD", "https://img/style.png"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "A fox figurine" {
		t.Fatalf("out = %q, want %q", out, "A fox figurine")
	}
	if payload.SystemInstruction == nil || payload.SystemInstruction.Parts[0].Text != "sys" {
		t.Fatalf("system instruction missing: %+v", payload.SystemInstruction)
	}
	parts := payload.Contents[0].Parts
	if len(parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(parts))
	}
	if parts[0].InlineData == nil || parts[0].InlineData.MimeType != "image/jpeg" || parts[0].InlineData.Data != "QUJD" {
		t.Fatalf("inline part = %+v", parts[0].InlineData)
	}
	if parts[1].FileData == nil || parts[1].FileData.FileURI != "https://img/style.png" {
		t.Fatalf("file part = %+v", parts[1].FileData)
	}
	if parts[2].Text != "role1 text" {
		t.Fatalf("text part = %q, want %q", parts[2].Text, "role1 text")
	}
}

func TestGeminiCompleterEmptyCandidates(t *testing.T) {
	c, _ := NewGeminiCompleter(GeminiOptions{
		APIKey: "g-key",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"candidates":[]}`), nil
		})},
	})
	out, err := c.Complete(context.Background(), Request{Text: "x"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "" {
		t.Fatalf("out = %q, want empty", out)
	}
}

func TestGeminiCompleterNonSuccessStatus(t *testing.T) {
	c, _ := NewGeminiCompleter(GeminiOptions{
		APIKey: "g-key",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusTooManyRequests, `{"error":"quota"}`), nil
		})},
	})
	_, err := c.Complete(context.Background(), Request{Text: "x"})
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("err = %v, want *domain.UpstreamError", err)
	}
	if upstream.Status != http.StatusTooManyRequests || !strings.Contains(upstream.Body, "quota") {
		t.Fatalf("upstream = %+v", upstream)
	}
}

func TestGeminiCompleterSendsEmptySystemInstruction(t *testing.T) {
	var payload map[string]any
	c, _ := NewGeminiCompleter(GeminiOptions{
		APIKey: "g-key",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode: %v", err)
			}
			return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`), nil
		})},
	})
	if _, err := c.Complete(context.Background(), Request{Text: "role1 text"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	sys, ok := payload["systemInstruction"].(map[string]any)
	if !ok {
		t.Fatalf("systemInstruction missing: %v", payload)
	}
	parts, _ := sys["parts"].([]any)
	if len(parts) != 1 {
		t.Fatalf("system parts = %v, want one", sys["parts"])
	}
	text, ok := parts[0].(map[string]any)["text"]
	if !ok || text != "" {
		t.Fatalf("system text = %v (present %v), want empty string", text, ok)
	}
}
