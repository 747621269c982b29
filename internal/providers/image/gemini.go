package image

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"boardgen/internal/domain"
	"boardgen/internal/providers/gemini"
)

const geminiImageProvider = "gemini-image"

type GeminiOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// GeminiGenerator draws through generateContent on an image-capable model.
// The picture comes back inline and is returned as a data URI.
type GeminiGenerator struct {
	client *gemini.Client
	model  string
}

func NewGeminiGenerator(opts GeminiOptions) (*GeminiGenerator, error) {
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
		model = "gemini-2.5-flash-image-preview"
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (Asset, error) {
	if err := req.Validate(); err != nil {
		return Asset{}, err
	}
	var images []string
	if req.Mode == ModeEdit {
		images = append(images, req.SourceURL)
	}
	asset, _, err := g.Compose(ctx, "", images, req.Prompt)
	return asset, err
}

// Compose sends instructions, then images, then texts as one user turn and
// returns the first inline image plus any text the model wrote beside it.
// Image models take their instructions inline rather than as a system turn.
func (g *GeminiGenerator) Compose(ctx context.Context, instructions string, images []string, texts ...string) (Asset, string, error) {
	parts := make([]gemini.Part, 0, len(images)+len(texts)+1)
	if instructions != "" {
		parts = append(parts, gemini.Part{Text: instructions})
	}
	for _, img := range images {
		parts = append(parts, gemini.ImagePart(img))
	}
	for _, text := range texts {
		if text != "" {
			parts = append(parts, gemini.Part{Text: text})
		}
	}
	resp, err := g.client.GenerateContent(ctx, g.model, gemini.Request{
		Contents: []gemini.Content{{Role: "user", Parts: parts}},
		GenerationConfig: gemini.GenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	})
	if err != nil {
		var upstream *domain.UpstreamError
		if errors.As(err, &upstream) {
			upstream.Provider = geminiImageProvider
		}
		return Asset{}, "", err
	}
	blob, ok := resp.Image()
	if !ok {
		return Asset{}, "", &domain.UpstreamError{Provider: geminiImageProvider, Status: http.StatusOK, Body: "no image returned"}
	}
	mime := blob.MimeType
	if mime == "" {
		mime = "image/png"
	}
	return Asset{URL: "data:" + mime + ";base64," + blob.Data, Format: mime}, strings.TrimSpace(resp.Text()), nil
}

var _ Generator = (*GeminiGenerator)(nil)
