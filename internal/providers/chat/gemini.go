package chat

import (
	"context"
	"net/http"
	"strings"

	"boardgen/internal/providers/gemini"
)

type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiCompleter talks to the generateContent REST endpoint directly.
type GeminiCompleter struct {
	client *gemini.Client
	model  string
}

func NewGeminiCompleter(opts GeminiOptions) (*GeminiCompleter, error) {
	client, err := gemini.NewClient(gemini.Options{
		APIKey:     opts.APIKey,
		BaseURL:    opts.BaseURL,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.5-flash-lite"
	}
	return &GeminiCompleter{client: client, model: model}, nil
}

// Complete always sends a system instruction, empty or not.
func (g *GeminiCompleter) Complete(ctx context.Context, req Request) (string, error) {
	parts := make([]gemini.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, gemini.ImagePart(img))
	}
	parts = append(parts, gemini.Part{Text: req.Text})

	resp, err := g.client.GenerateContent(ctx, g.model, gemini.Request{
		SystemInstruction: &gemini.Content{Parts: []gemini.Part{{Text: req.SystemPrompt}}},
		Contents:          []gemini.Content{{Role: "user", Parts: parts}},
		GenerationConfig: gemini.GenerationConfig{
			CandidateCount:  1,
			MaxOutputTokens: req.MaxTokens,
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

var _ Completer = (*GeminiCompleter)(nil)
