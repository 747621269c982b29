package handlers

import (
	"net/http"
	"strings"

	"boardgen/internal/domain"
	"boardgen/internal/pipeline"
)

type pipelineRequest struct {
	ImageURL      string            `json:"imageUrl"`
	StyleImageURL string            `json:"styleImageUrl"`
	ThemeID       string            `json:"themeId"`
	Prompts       map[string]string `json:"prompts"`
	Branch        bool              `json:"branch"`
	ImagePath     string            `json:"imagePath"`
	UseStyle      map[string]bool   `json:"useStyle"`
}

// toRequest builds the pipeline request. Explicit prompts take precedence
// over themeId.
func (p pipelineRequest) toRequest() (pipeline.Request, error) {
	req := pipeline.Request{
		BoardImage: strings.TrimSpace(p.ImageURL),
		ThemeID:    strings.TrimSpace(p.ThemeID),
		StyleImage: strings.TrimSpace(p.StyleImageURL),
	}
	if req.BoardImage == "" {
		return req, domain.Validation("imageUrl", "is required")
	}
	if len(p.UseStyle) > 0 {
		req.UseStyle = make(map[domain.Role]bool, len(p.UseStyle))
		for k, v := range p.UseStyle {
			role, ok := domain.ParseRole(k)
			if !ok {
				return req, domain.Validation("useStyle", "unknown role "+k)
			}
			req.UseStyle[role] = v
		}
	}
	if len(p.Prompts) > 0 {
		set := domain.RolePromptSet{
			Prompts:   make(map[domain.Role]string, len(domain.Roles)),
			Branch:    p.Branch,
			ImagePath: domain.NormalizeImagePath(strings.ToLower(strings.TrimSpace(p.ImagePath))),
		}
		for k, v := range p.Prompts {
			role, ok := domain.ParseRole(k)
			if !ok {
				return req, domain.Validation("prompts", "unknown role "+k)
			}
			set.Prompts[role] = v
		}
		req.Prompts = &set
	}
	return req, nil
}

func (a *App) RunPipeline(w http.ResponseWriter, r *http.Request) {
	if a.Pipeline == nil {
		a.unavailable(w, "pipeline")
		return
	}
	var body pipelineRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	req, err := body.toRequest()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.Pipeline.Run(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

type boardRequest struct {
	ImageURL   string `json:"imageUrl"`
	TemplateID string `json:"templateId"`
	Prompt     string `json:"userPrompt"`
}

func (a *App) GenerateBoard(w http.ResponseWriter, r *http.Request) {
	if a.Board == nil {
		a.unavailable(w, "board generator")
		return
	}
	var body boardRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.Board.Generate(r.Context(), pipeline.BoardRequest{
		BoardImage: strings.TrimSpace(body.ImageURL),
		TemplateID: body.TemplateID,
		Prompt:     body.Prompt,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}
