package handlers

import (
	"net/http"

	"boardgen/internal/domain"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status": "ok",
		"components": map[string]bool{
			"pipeline": a.Pipeline != nil,
			"board":    a.Board != nil,
			"design":   a.Design != nil,
			"images":   a.Images != nil,
			"imageJob": a.Jobs != nil,
			"storage":  a.Uploader != nil,
		},
	})
}

type themeView struct {
	ID        string               `json:"id"`
	Default   bool                 `json:"default"`
	Branch    bool                 `json:"branch"`
	ImagePath domain.ImagePath     `json:"imagePath"`
	Roles     []domain.Role        `json:"roles"`
	UseStyle  map[domain.Role]bool `json:"useStyle,omitempty"`
}

func (a *App) ListThemes(w http.ResponseWriter, r *http.Request) {
	if a.Themes == nil {
		a.unavailable(w, "theme registry")
		return
	}
	def := a.Themes.DefaultID()
	var out []themeView
	for _, t := range a.Themes.Themes() {
		view := themeView{
			ID:        t.ID,
			Default:   t.ID == def,
			Branch:    t.Prompts.Branch,
			ImagePath: t.Prompts.ImagePath,
			UseStyle:  t.Prompts.UseStyle,
		}
		for _, role := range domain.Roles {
			if t.Prompts.Prompt(role) != "" {
				view.Roles = append(view.Roles, role)
			}
		}
		out = append(out, view)
	}
	a.json(w, http.StatusOK, map[string]any{"default": def, "themes": out})
}
