package image

import (
	"encoding/json"
	"strings"

	"boardgen/internal/domain"
)

// Action is a structured image request produced by a model function call.
type Action interface {
	Request() Request
	isAction()
}

// GenerateImage draws a new image from a prompt.
type GenerateImage struct {
	Prompt string `json:"prompt"`
}

func (a GenerateImage) Request() Request { return Request{Mode: ModeGenerate, Prompt: a.Prompt} }
func (GenerateImage) isAction()          {}

// EditImage modifies an existing image.
type EditImage struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"imageUrl"`
}

func (a EditImage) Request() Request {
	return Request{Mode: ModeEdit, Prompt: a.Prompt, SourceURL: a.ImageURL}
}
func (EditImage) isAction() {}

const (
	ActionGenerateImage = "generate_image"
	ActionEditImage     = "edit_image"
)

// ParseAction decodes a function call. Unknown names are fatal.
func ParseAction(name string, args json.RawMessage) (Action, error) {
	switch strings.TrimSpace(name) {
	case ActionGenerateImage:
		var a GenerateImage
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if strings.TrimSpace(a.Prompt) == "" {
			return nil, domain.Validation("prompt", "is required")
		}
		return a, nil
	case ActionEditImage:
		var a EditImage
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if strings.TrimSpace(a.Prompt) == "" {
			return nil, domain.Validation("prompt", "is required")
		}
		return a, nil
	default:
		return nil, &domain.UnknownActionError{Name: name}
	}
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return domain.Validation("arguments", "missing")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &domain.ValidationError{Field: "arguments", Reason: err.Error()}
	}
	return nil
}
