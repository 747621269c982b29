package themes

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"boardgen/internal/domain"
)

type fileTheme struct {
	ID        string            `yaml:"id"`
	Extends   string            `yaml:"extends"`
	Branch    *bool             `yaml:"branch"`
	ImagePath string            `yaml:"image_path"`
	Prompts   map[string]string `yaml:"prompts"`
	UseStyle  map[string]bool   `yaml:"use_style"`
}

type fileDoc struct {
	Default string      `yaml:"default"`
	Themes  []fileTheme `yaml:"themes"`
}

// LoadFile reads theme definitions from a YAML document and layers them over
// base. A theme that reuses an existing id replaces it; extends copies the
// prompts of another theme before applying overrides.
func LoadFile(path string, base *Registry) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("themes: read %s: %w", path, err)
	}
	return Parse(raw, base)
}

// Parse is LoadFile without the filesystem.
func Parse(raw []byte, base *Registry) (*Registry, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("themes: decode: %w", err)
	}

	var themes []Theme
	defaultID := ThemeDefault
	if base != nil {
		themes = base.Themes()
		defaultID = base.DefaultID()
	}
	index := func(id string) int {
		for i, t := range themes {
			if strings.EqualFold(t.ID, id) {
				return i
			}
		}
		return -1
	}

	for _, ft := range doc.Themes {
		id := strings.TrimSpace(ft.ID)
		if id == "" {
			return nil, fmt.Errorf("themes: entry without id")
		}
		set := domain.RolePromptSet{Prompts: map[domain.Role]string{}}
		if ext := strings.TrimSpace(ft.Extends); ext != "" {
			i := index(ext)
			if i < 0 {
				return nil, fmt.Errorf("themes: %s extends unknown theme %q", id, ext)
			}
			set = themes[i].Prompts.Clone()
		}
		for k, v := range ft.Prompts {
			role, ok := domain.ParseRole(k)
			if !ok {
				return nil, fmt.Errorf("themes: %s: unknown role %q", id, k)
			}
			set.Prompts[role] = v
		}
		for k, v := range ft.UseStyle {
			role, ok := domain.ParseRole(k)
			if !ok {
				return nil, fmt.Errorf("themes: %s: unknown role %q", id, k)
			}
			if set.UseStyle == nil {
				set.UseStyle = map[domain.Role]bool{}
			}
			set.UseStyle[role] = v
		}
		if ft.Branch != nil {
			set.Branch = *ft.Branch
		}
		if ft.ImagePath != "" {
			set.ImagePath = domain.NormalizeImagePath(strings.ToLower(strings.TrimSpace(ft.ImagePath)))
		}

		t := Theme{ID: id, Prompts: set}
		if i := index(id); i >= 0 {
			themes[i] = t
		} else {
			themes = append(themes, t)
		}
	}

	if d := strings.TrimSpace(doc.Default); d != "" {
		defaultID = d
	}
	return NewRegistry(defaultID, themes...)
}
