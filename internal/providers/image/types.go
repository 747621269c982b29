package image

import (
	"context"
	"strings"

	"boardgen/internal/domain"
)

// Mode selects between drawing from scratch and editing an existing image.
type Mode string

const (
	ModeGenerate Mode = "generate"
	ModeEdit     Mode = "edit"
)

// NormalizeMode sanitizes free-form input into a supported mode.
func NormalizeMode(mode string) Mode {
	if strings.EqualFold(strings.TrimSpace(mode), string(ModeEdit)) {
		return ModeEdit
	}
	return ModeGenerate
}

// Request is a single-shot image call.
type Request struct {
	Prompt    string
	Mode      Mode
	SourceURL string
}

// Validate rejects requests that cannot be sent.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return domain.Validation("prompt", "is required")
	}
	if r.Mode == ModeEdit && strings.TrimSpace(r.SourceURL) == "" {
		return domain.Validation("srcImageUrl", "is required for edit")
	}
	return nil
}

// Asset is a generated image. URL is either a remote URL or a data URI.
type Asset struct {
	URL    string
	Format string
}

// Generator is the contract implemented by single-shot image providers.
type Generator interface {
	Generate(ctx context.Context, req Request) (Asset, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (Asset, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (Asset, error) {
	return f(ctx, req)
}
