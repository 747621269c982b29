package image

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

func geminiServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash-image-preview:generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "g-key" {
			t.Errorf("api key header = %q, want %q", got, "g-key")
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

func TestGeminiComposeReturnsInlineImage(t *testing.T) {
	var captured map[string]any
	srv := geminiServer(t, http.StatusOK,
		`{"candidates":[{"content":{"parts":[{"text":"round red bead"},{"inlineData":{"mimeType":"image/png","data":"UE5H"}}]}}]}`,
		&captured)
	g, err := NewGeminiGenerator(GeminiOptions{APIKey: "g-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGeminiGenerator: %v", err)
	}

	asset, desc, err := g.Compose(context.Background(), "draw the bead",
		[]string{"data:image/jpeg;base64,V0hJVEU=", "data:image/png;base64,UFJPRA=="}, "analysis text")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if asset.URL != "data:image/png;base64,UE5H" || asset.Format != "image/png" {
		t.Fatalf("asset = %+v", asset)
	}
	if desc != "round red bead" {
		t.Fatalf("desc = %q, want %q", desc, "round red bead")
	}

	contents := captured["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	if len(parts) != 4 {
		t.Fatalf("parts = %d, want 4", len(parts))
	}
	if parts[0].(map[string]any)["text"] != "draw the bead" {
		t.Fatalf("first part = %v", parts[0])
	}
	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	if inline["mimeType"] != "image/jpeg" || inline["data"] != "V0hJVEU=" {
		t.Fatalf("whiteboard part = %v", inline)
	}
	if parts[3].(map[string]any)["text"] != "analysis text" {
		t.Fatalf("last part = %v", parts[3])
	}
}

func TestGeminiGenerateWithoutImageIsUpstreamError(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"sorry"}]}}]}`, nil)
	g, _ := NewGeminiGenerator(GeminiOptions{APIKey: "g-key", BaseURL: srv.URL})

	_, err := g.Generate(context.Background(), Request{Prompt: "fox"})
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("err = %v, want *domain.UpstreamError", err)
	}
	if upstream.Provider != "gemini-image" || upstream.Body != "no image returned" {
		t.Fatalf("upstream = %+v", upstream)
	}
}

func TestGeminiGenerateEditSendsSource(t *testing.T) {
	var captured map[string]any
	srv := geminiServer(t, http.StatusOK,
		`{"candidates":[{"content":{"parts":[{"inline_data":{"mime_type":"image/webp","data":"V0VCUA=="}}]}}]}`,
		&captured)
	g, _ := NewGeminiGenerator(GeminiOptions{APIKey: "g-key", BaseURL: srv.URL})

	asset, err := g.Generate(context.Background(), Request{Prompt: "recolor", Mode: ModeEdit, SourceURL: "https://cdn/src.png"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if asset.URL != "data:image/webp;base64,V0VCUA==" {
		t.Fatalf("url = %q", asset.URL)
	}
	parts := captured["contents"].([]any)[0].(map[string]any)["parts"].([]any)
	file := parts[0].(map[string]any)["fileData"].(map[string]any)
	if file["fileUri"] != "https://cdn/src.png" {
		t.Fatalf("source part = %v", parts[0])
	}
}

func TestGeminiUpstreamStatusKeepsImageProvider(t *testing.T) {
	srv := geminiServer(t, http.StatusTooManyRequests, `{"error":"quota"}`, nil)
	g, _ := NewGeminiGenerator(GeminiOptions{APIKey: "g-key", BaseURL: srv.URL})

	_, err := g.Generate(context.Background(), Request{Prompt: "fox"})
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) || upstream.Status != http.StatusTooManyRequests || upstream.Provider != "gemini-image" {
		t.Fatalf("err = %v", err)
	}
}
