package image

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"boardgen/internal/domain"
)

const openAIImageProvider = "openai-image"

type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Size       string
	HTTPClient *http.Client
}

// OpenAIGenerator draws one image per call through the images endpoint. Edit
// requests pass the source image as image_url, which OpenAI-compatible
// gateways accept for gpt-image-1.
type OpenAIGenerator struct {
	client openai.Client
	model  string
	size   string
}

func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("openai api key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-image-1"
	}
	size := strings.TrimSpace(opts.Size)
	if size == "" {
		size = "768x768"
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base+"/"))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &OpenAIGenerator{client: openai.NewClient(reqOpts...), model: model, size: size}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Asset, error) {
	if err := req.Validate(); err != nil {
		return Asset{}, err
	}
	params := openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(g.model),
		N:      openai.Int(1),
		Size:   openai.ImageGenerateParamsSize(g.size),
	}
	var callOpts []option.RequestOption
	if req.Mode == ModeEdit {
		callOpts = append(callOpts, option.WithJSONSet("image_url", req.SourceURL))
	}
	resp, err := g.client.Images.Generate(ctx, params, callOpts...)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return Asset{}, &domain.UpstreamError{Provider: openAIImageProvider, Status: apiErr.StatusCode, Body: apiErr.Message}
		}
		return Asset{}, err
	}
	if len(resp.Data) == 0 {
		return Asset{}, &domain.UpstreamError{Provider: openAIImageProvider, Status: http.StatusOK, Body: "no image returned"}
	}
	first := resp.Data[0]
	if u := strings.TrimSpace(first.URL); u != "" {
		return Asset{URL: u, Format: "image/png"}, nil
	}
	if b64 := strings.TrimSpace(first.B64JSON); b64 != "" {
		return Asset{URL: "data:image/png;base64," + b64, Format: "image/png"}, nil
	}
	return Asset{}, &domain.UpstreamError{Provider: openAIImageProvider, Status: http.StatusOK, Body: "image without url or b64_json"}
}

var _ Generator = (*OpenAIGenerator)(nil)
