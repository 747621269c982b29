// Package themes maps theme identifiers to the role prompt sets that drive
// the creative pipeline.
package themes

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"boardgen/internal/domain"
)

// Theme binds an identifier to its prompt set.
type Theme struct {
	ID      string
	Prompts domain.RolePromptSet
}

// Resolution is the outcome of a lookup. Defaulted is set whenever the
// requested identifier was empty or unknown and the default theme was used.
type Resolution struct {
	ThemeID   string
	Requested string
	Prompts   domain.RolePromptSet
	Defaulted bool
}

// Registry is an immutable theme lookup table.
type Registry struct {
	themes    map[string]Theme
	order     []string
	defaultID string
	fold      cases.Caser
}

// NewRegistry builds a registry; defaultID must name one of the themes.
func NewRegistry(defaultID string, themes ...Theme) (*Registry, error) {
	r := &Registry{
		themes: make(map[string]Theme, len(themes)),
		fold:   cases.Fold(),
	}
	for _, t := range themes {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return nil, errors.New("themes: theme id is required")
		}
		key := r.key(id)
		if _, dup := r.themes[key]; dup {
			return nil, fmt.Errorf("themes: duplicate theme %q", id)
		}
		t.ID = id
		t.Prompts = normalize(t.Prompts)
		r.themes[key] = t
		r.order = append(r.order, id)
	}
	def, ok := r.themes[r.key(defaultID)]
	if !ok {
		return nil, fmt.Errorf("themes: default theme %q not registered", defaultID)
	}
	r.defaultID = def.ID
	return r, nil
}

// Builtin returns the registry of themes that ship with the service.
func Builtin() *Registry {
	r, err := NewRegistry(ThemeDefault, builtinThemes()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the prompt set for themeID, falling back to the default
// theme. The returned prompt set is a private copy.
func (r *Registry) Resolve(themeID string) Resolution {
	requested := strings.TrimSpace(themeID)
	if t, ok := r.themes[r.key(requested)]; ok && requested != "" {
		return Resolution{ThemeID: t.ID, Requested: requested, Prompts: t.Prompts.Clone()}
	}
	def := r.themes[r.key(r.defaultID)]
	return Resolution{ThemeID: def.ID, Requested: requested, Prompts: def.Prompts.Clone(), Defaulted: true}
}

// DefaultID names the fallback theme.
func (r *Registry) DefaultID() string {
	return r.defaultID
}

// Themes lists registered themes in registration order.
func (r *Registry) Themes() []Theme {
	out := make([]Theme, 0, len(r.order))
	for _, id := range r.order {
		t := r.themes[r.key(id)]
		out = append(out, Theme{ID: t.ID, Prompts: t.Prompts.Clone()})
	}
	return out
}

func (r *Registry) key(id string) string {
	return r.fold.String(strings.TrimSpace(id))
}

func normalize(set domain.RolePromptSet) domain.RolePromptSet {
	out := set.Clone()
	for _, role := range domain.Roles {
		if _, ok := out.Prompts[role]; !ok {
			out.Prompts[role] = ""
		}
	}
	out.ImagePath = domain.NormalizeImagePath(string(out.ImagePath))
	return out
}
