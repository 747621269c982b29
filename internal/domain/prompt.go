package domain

// ImagePath selects how a theme turns the final prompt into an image.
type ImagePath string

const (
	// ImagePathSingle uses the single-shot image endpoint wrapped in retries.
	ImagePathSingle ImagePath = "single"
	// ImagePathJob uses the signed submit-and-poll renderer.
	ImagePathJob ImagePath = "job"
)

// NormalizeImagePath maps free-form config onto a supported path.
func NormalizeImagePath(s string) ImagePath {
	if ImagePath(s) == ImagePathJob {
		return ImagePathJob
	}
	return ImagePathSingle
}

// RolePromptSet holds the system prompt for each role plus the branch flag.
// It is selected once per request and never mutated afterwards.
type RolePromptSet struct {
	Prompts   map[Role]string `json:"prompts"`
	Branch    bool            `json:"branch"`
	ImagePath ImagePath       `json:"image_path"`
	UseStyle  map[Role]bool   `json:"use_style,omitempty"`
}

// Prompt returns the system prompt for role, or "" when none is configured.
func (s RolePromptSet) Prompt(role Role) string {
	return s.Prompts[role]
}

// Clone returns a deep copy so callers can never alias registry state.
func (s RolePromptSet) Clone() RolePromptSet {
	out := RolePromptSet{
		Branch:    s.Branch,
		ImagePath: s.ImagePath,
		Prompts:   make(map[Role]string, len(s.Prompts)),
	}
	for k, v := range s.Prompts {
		out.Prompts[k] = v
	}
	if len(s.UseStyle) > 0 {
		out.UseStyle = make(map[Role]bool, len(s.UseStyle))
		for k, v := range s.UseStyle {
			out.UseStyle[k] = v
		}
	}
	return out
}
