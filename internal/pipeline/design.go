package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"boardgen/internal/domain"
	"boardgen/internal/infra"
	"boardgen/internal/providers/chat"
	"boardgen/internal/providers/image"
	"boardgen/internal/storage"
)

const (
	DesignNodeAnalyze = "1-1"
	DesignNodeRender  = "1-2"
	DefaultDesignTask = "devdesign"
)

const designAnalysisPrompt = `You are a designer of feature beads for bracelets and charms.
The first image is the user's whiteboard: read its theme, symbols, style and mood.
The second image shows the companion beads: read their material, size, colour and stringing.
Decide whether the inspiration is a personal symbol, a cultural symbol, a natural image or an attitude, and distil it into a visual
motif (geometric lines, pattern, texture or a figurative subject) that can live on a bead surface.
Pick a form that suits the theme (round, faceted, irregular, hollowed, relief, figure or object) and choose colours and materials
that relate to the companion beads, matching, contrasting or graded, but always tied to the theme.
Answer with one short paragraph in exactly this shape, leaving out the symbol or fusion clause if you cannot read it:
The feature bead is shaped as [form], the theme is fused by [fusion], the symbol is [symbol], the palette is [colours], the material is [material].`

const designRenderPrompt = `You assist a jewellery designer by rendering feature beads.
Using the whiteboard inspiration, the companion bead reference and the design analysis that follow, draw the feature bead.
Show its design details clearly, keep the style faithful to the analysis, consider how it sits with the companion beads,
and deliver a polished product render.`

// Composer draws an image from instructions, reference images and text.
type Composer interface {
	Compose(ctx context.Context, instructions string, images []string, texts ...string) (image.Asset, string, error)
}

// SourceLoader reads an image reference into bytes.
type SourceLoader interface {
	Load(ctx context.Context, source string) ([]byte, string, error)
}

type DesignOptions struct {
	Analyst  chat.Completer
	Composer Composer
	Loader   SourceLoader
	Uploader Uploader
	Timeout  time.Duration
	Logger   *infra.Logger
}

// DesignAgent turns a whiteboard and a product photo into a feature bead: an
// analysis first, then a render that builds on that analysis.
type DesignAgent struct {
	analyst  chat.Completer
	composer Composer
	loader   SourceLoader
	uploader Uploader
	timeout  time.Duration
	logger   *infra.Logger
}

func NewDesignAgent(opts DesignOptions) *DesignAgent {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &DesignAgent{
		analyst:  opts.Analyst,
		composer: opts.Composer,
		loader:   opts.Loader,
		uploader: opts.Uploader,
		timeout:  timeout,
		logger:   infra.OrDiscard(opts.Logger),
	}
}

type DesignRequest struct {
	Whiteboard string
	Product    string
	Analysis   string
}

type DesignRender struct {
	ImageURL    string            `json:"imageUrl"`
	Description string            `json:"description"`
	BasedOn     string            `json:"basedOn"`
	Persisted   storage.Persisted `json:"-"`
}

// Analyze describes the feature bead the two images call for.
func (d *DesignAgent) Analyze(ctx context.Context, req DesignRequest) (string, error) {
	images, err := d.images(ctx, req)
	if err != nil {
		return "", err
	}
	if d.analyst == nil {
		return "", fmt.Errorf("design analysis: %w", domain.ErrNotConfigured)
	}
	out, err := image.Within(ctx, "design analysis", d.timeout, func(ctx context.Context) (string, error) {
		return d.analyst.Complete(ctx, chat.Request{
			SystemPrompt: designAnalysisPrompt,
			Images:       images,
			MaxTokens:    1000,
		})
	})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &domain.UpstreamError{Provider: "design-analysis", Status: 200, Body: "empty analysis"}
	}
	d.logger.Info().Int("chars", len(out)).Msg("design analysis done")
	return out, nil
}

// Render draws the feature bead described by req.Analysis.
func (d *DesignAgent) Render(ctx context.Context, req DesignRequest) (*DesignRender, error) {
	analysis := strings.TrimSpace(req.Analysis)
	if analysis == "" {
		return nil, domain.Validation("node1_1Result", "is required for node 1-2")
	}
	images, err := d.images(ctx, req)
	if err != nil {
		return nil, err
	}
	if d.composer == nil {
		return nil, fmt.Errorf("design render: %w", domain.ErrNotConfigured)
	}
	type drawn struct {
		asset image.Asset
		text  string
	}
	out, err := image.Within(ctx, "design render", d.timeout, func(ctx context.Context) (drawn, error) {
		asset, text, err := d.composer.Compose(ctx, designRenderPrompt, images,
			"Design analysis: "+analysis,
			"Draw the feature bead from the information above.")
		return drawn{asset: asset, text: text}, err
	})
	if err != nil {
		return nil, err
	}
	res := &DesignRender{ImageURL: out.asset.URL, Description: out.text, BasedOn: analysis}
	if d.uploader != nil {
		res.Persisted = storage.Persist(ctx, d.uploader, out.asset.URL, d.logger)
	} else {
		res.Persisted = storage.Persisted{URL: out.asset.URL}
	}
	d.logger.Info().Bool("durable", res.Persisted.Durable).Msg("design render done")
	return res, nil
}

// images returns the whiteboard and product as data URIs when a loader is
// available, otherwise as given.
func (d *DesignAgent) images(ctx context.Context, req DesignRequest) ([]string, error) {
	whiteboard := strings.TrimSpace(req.Whiteboard)
	product := strings.TrimSpace(req.Product)
	if whiteboard == "" || product == "" {
		return nil, domain.Validation("images", "both whiteboardImage and productImage are required")
	}
	out := make([]string, 0, 2)
	for _, ref := range []struct{ field, src string }{{"whiteboardImage", whiteboard}, {"productImage", product}} {
		inlined, err := d.inline(ctx, ref.src)
		if err != nil {
			return nil, &domain.ValidationError{Field: ref.field, Reason: err.Error()}
		}
		out = append(out, inlined)
	}
	return out, nil
}

func (d *DesignAgent) inline(ctx context.Context, src string) (string, error) {
	if d.loader == nil || strings.HasPrefix(src, "data:") {
		return src, nil
	}
	data, ct, err := d.loader.Load(ctx, src)
	if err != nil {
		return "", err
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
