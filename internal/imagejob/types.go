package imagejob

import (
	"encoding/json"
	"strings"

	"boardgen/internal/domain"
)

// Mode selects the renderer workflow.
type Mode string

const (
	ModeText2Img Mode = "text2img"
	ModeImg2Img  Mode = "img2img"
)

const (
	PathText2Img = "/api/generate/kontext/text2img"
	PathImg2Img  = "/api/generate/kontext/img2img"
	PathStatus   = "/api/generate/status"
)

// ParseMode maps free-form input to a mode.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeText2Img:
		return ModeText2Img, true
	case ModeImg2Img:
		return ModeImg2Img, true
	}
	return "", false
}

func (m Mode) path() string {
	if m == ModeImg2Img {
		return PathImg2Img
	}
	return PathText2Img
}

// Request describes one render job. ParentJobID chains an edit onto a
// previous job and is forwarded verbatim.
type Request struct {
	Mode        Mode   `json:"mode"`
	Prompt      string `json:"prompt"`
	SourceImage string `json:"imageUrl,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageCount  int    `json:"imgCount,omitempty"`
	ParentJobID string `json:"parentGenerateUuid,omitempty"`
}

// Validate runs before any network call.
func (r Request) Validate() error {
	switch r.Mode {
	case ModeText2Img, ModeImg2Img:
	default:
		return domain.Validation("mode", "must be text2img or img2img")
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return domain.Validation("prompt", "is required")
	}
	if r.Mode == ModeImg2Img && strings.TrimSpace(r.SourceImage) == "" {
		return domain.Validation("imageUrl", "is required for img2img")
	}
	return nil
}

// Job is the renderer's view of a submitted job.
type Job struct {
	ID     string           `json:"generateUuid"`
	Status domain.JobStatus `json:"status"`
	Images []string         `json:"images"`
}

type submitPayload struct {
	TemplateUUID   string         `json:"templateUuid"`
	GenerateParams map[string]any `json:"generateParams"`
}

type statusPayload struct {
	GenerateUUID string `json:"generateUuid"`
}

// envelope accepts both the flat and the data-wrapped response shapes.
type envelope struct {
	GenerateUUID string     `json:"generateUuid"`
	Images       []jobImage `json:"images"`
	Data         *envelope  `json:"data"`
}

func (e envelope) jobID() string {
	if e.GenerateUUID != "" {
		return e.GenerateUUID
	}
	if e.Data != nil {
		return e.Data.GenerateUUID
	}
	return ""
}

func (e envelope) images() []string {
	src := e.Images
	if e.Data != nil {
		src = e.Data.Images
	}
	out := make([]string, 0, len(src))
	for _, img := range src {
		if u := strings.TrimSpace(string(img)); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// jobImage is either a bare URL or an object with imageUrl.
type jobImage string

func (j *jobImage) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*j = jobImage(s)
		return nil
	}
	var obj struct {
		ImageURL string `json:"imageUrl"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*j = jobImage(obj.ImageURL)
	return nil
}
