package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"boardgen/internal/domain"
	"boardgen/internal/imagejob"
	"boardgen/internal/infra"
	"boardgen/internal/middleware"
	"boardgen/internal/pipeline"
	"boardgen/internal/providers/image"
	"boardgen/internal/themes"
)

type PipelineRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type BoardRunner interface {
	Generate(ctx context.Context, req pipeline.BoardRequest) (*pipeline.BoardResult, error)
}

type DesignRunner interface {
	Analyze(ctx context.Context, req pipeline.DesignRequest) (string, error)
	Render(ctx context.Context, req pipeline.DesignRequest) (*pipeline.DesignRender, error)
}

type ImageJobs interface {
	Submit(ctx context.Context, req imagejob.Request) (string, error)
	Poll(ctx context.Context, jobID string) (imagejob.Job, error)
	GenerateAndWait(ctx context.Context, req imagejob.Request, interval, timeout time.Duration) (imagejob.Job, error)
}

type ThemeLister interface {
	Themes() []themes.Theme
	DefaultID() string
}

type Uploader interface {
	Upload(ctx context.Context, source string) (string, error)
	Store(ctx context.Context, data []byte, contentType string) (string, error)
}

type SourceLoader interface {
	Load(ctx context.Context, source string) ([]byte, string, error)
}

// App holds the collaborators behind the HTTP surface. Nil collaborators make
// their routes answer 503.
type App struct {
	Pipeline     PipelineRunner
	Board        BoardRunner
	Design       DesignRunner
	Images       image.Generator
	ImageTimeout time.Duration
	Jobs         ImageJobs
	Themes       ThemeLister
	Uploader     Uploader
	Loader       SourceLoader
	Logger       *infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error          string `json:"error"`
	Code           string `json:"code"`
	Role           string `json:"role,omitempty"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
	Upstream       string `json:"upstream,omitempty"`
	RequestID      string `json:"requestId,omitempty"`
}

func (a *App) error(w http.ResponseWriter, status int, code, msg string) {
	a.json(w, status, errorBody{Error: msg, Code: code})
}

// fail maps a domain error onto a status code and a structured body.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := describeError(err)
	body.RequestID = middleware.RequestIDFromContext(r.Context())
	log := infra.OrDiscard(a.Logger)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", body.RequestID).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	} else {
		log.Info().Err(err).Str("request_id", body.RequestID).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	}
	a.json(w, status, body)
}

func describeError(err error) (int, errorBody) {
	body := errorBody{Error: err.Error(), Code: "internal"}
	var stepErr *domain.StepError
	if errors.As(err, &stepErr) {
		body.Role = string(stepErr.Role)
	}
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		body.UpstreamStatus = upstream.Status
		body.Upstream = upstream.Provider
	}
	switch {
	case errors.Is(err, domain.ErrValidation):
		body.Code = "bad_request"
		return http.StatusBadRequest, body
	case errors.Is(err, domain.ErrTimeout):
		body.Code = "timeout"
		return http.StatusGatewayTimeout, body
	case errors.Is(err, domain.ErrUnknownAction):
		body.Code = "unknown_action"
		return http.StatusInternalServerError, body
	case errors.Is(err, domain.ErrNotConfigured):
		body.Code = "not_configured"
		return http.StatusServiceUnavailable, body
	case errors.Is(err, domain.ErrStepFailed):
		body.Code = "step_failed"
		return http.StatusInternalServerError, body
	case errors.Is(err, domain.ErrUpstream):
		body.Code = "upstream"
		return http.StatusInternalServerError, body
	case errors.Is(err, context.DeadlineExceeded):
		body.Code = "timeout"
		return http.StatusGatewayTimeout, body
	}
	return http.StatusInternalServerError, body
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 32<<20))
	if err := dec.Decode(v); err != nil {
		return &domain.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}

func (a *App) unavailable(w http.ResponseWriter, what string) {
	a.error(w, http.StatusServiceUnavailable, "not_configured", what+" is not configured")
}
