package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"boardgen/internal/domain"
	"boardgen/internal/infra"
	"boardgen/internal/providers/chat"
	"boardgen/internal/providers/image"
	"boardgen/internal/storage"
)

const boardSystemPrompt = `You are a toy design assistant for collectible, 3D-printable art toys. Read the user's whiteboard image
(sketches, annotations, keywords, colour marks, layout) together with the template id and their note, and infer what they want to make.
Write a production-ready English image prompt: subject, pose, materials, finish, colours and style on a plain background.
Use edit_image when the user wants to refine what is already on the board, otherwise generate_image.
You must answer with a function call to generate_image or edit_image, never with plain text.`

// BoardFunctions are the actions offered to the model.
var BoardFunctions = []chat.Function{
	{
		Name:        image.ActionGenerateImage,
		Description: "Generate an image based on the provided prompt",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{"type": "string", "description": "High-quality prompt for the image model"},
			},
			"required": []string{"prompt"},
		},
	},
	{
		Name:        image.ActionEditImage,
		Description: "Generate a new image based on an existing image and prompt",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt":   map[string]any{"type": "string", "description": "Refined prompt for editing the image"},
				"imageUrl": map[string]any{"type": "string", "description": "URL of the source image"},
			},
			"required": []string{"prompt", "imageUrl"},
		},
	},
}

type BoardOptions struct {
	Caller   chat.FunctionCaller
	Images   image.Generator
	Uploader Uploader
	Timeout  time.Duration
	Logger   *infra.Logger
}

// BoardGenerator lets the model pick an image action for a board and runs it.
type BoardGenerator struct {
	caller   chat.FunctionCaller
	images   image.Generator
	uploader Uploader
	timeout  time.Duration
	logger   *infra.Logger
}

func NewBoardGenerator(opts BoardOptions) *BoardGenerator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &BoardGenerator{
		caller:   opts.Caller,
		images:   opts.Images,
		uploader: opts.Uploader,
		timeout:  timeout,
		logger:   infra.OrDiscard(opts.Logger),
	}
}

type BoardRequest struct {
	BoardImage string
	TemplateID string
	Prompt     string
}

type BoardResult struct {
	Action    string            `json:"action"`
	Prompt    string            `json:"prompt"`
	ImageURL  string            `json:"imageUrl"`
	Persisted storage.Persisted `json:"persisted"`
}

// Generate asks the model for an action, then renders it. Edits always use
// the board itself as the source image.
func (b *BoardGenerator) Generate(ctx context.Context, req BoardRequest) (*BoardResult, error) {
	if strings.TrimSpace(req.BoardImage) == "" {
		return nil, domain.Validation("imageUrl", "is required")
	}
	if b.caller == nil || b.images == nil {
		return nil, fmt.Errorf("board: chat or image provider: %w", domain.ErrNotConfigured)
	}
	reply, err := b.caller.CompleteWithFunctions(ctx, chat.Request{
		SystemPrompt: boardSystemPrompt,
		Text:         fmt.Sprintf("templateId: %s\n%s", strings.TrimSpace(req.TemplateID), strings.TrimSpace(req.Prompt)),
		Images:       []string{req.BoardImage},
	}, BoardFunctions)
	if err != nil {
		return nil, err
	}
	if len(reply.Calls) == 0 {
		return nil, &domain.UpstreamError{Provider: "chat", Status: 200, Body: "model answered without a function call: " + reply.Text}
	}
	call := reply.Calls[0]
	action, err := image.ParseAction(call.Name, call.Arguments)
	if err != nil {
		return nil, err
	}

	imgReq := action.Request()
	if imgReq.Mode == image.ModeEdit {
		imgReq.SourceURL = req.BoardImage
	}
	b.logger.Info().Str("action", call.Name).Str("template", req.TemplateID).Msg("board action selected")

	asset, err := image.GenerateWithin(ctx, b.images, imgReq, b.timeout)
	if err != nil {
		return nil, err
	}
	res := &BoardResult{Action: call.Name, Prompt: imgReq.Prompt, ImageURL: asset.URL}
	if b.uploader != nil {
		res.Persisted = storage.Persist(ctx, b.uploader, asset.URL, b.logger)
	} else {
		res.Persisted = storage.Persisted{URL: asset.URL}
	}
	return res, nil
}
