package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrUpstream      = errors.New("upstream failure")
	ErrTimeout       = errors.New("timed out")
	ErrStepFailed    = errors.New("pipeline step failed")
	ErrUnknownAction = errors.New("unknown action")
	ErrNotConfigured = errors.New("not configured")
)

// ValidationError rejects a request before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UpstreamError reports a non-success answer from an external provider.
// Body keeps the raw provider payload so callers can surface it.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, body)
	}
	if body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, body)
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// TimeoutError is returned when a deadline or polling budget elapses. It is
// kept distinct from UpstreamError: the remote work may still finish.
type TimeoutError struct {
	Op      string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Op, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// StepError attributes a failure to the pipeline role that produced it.
type StepError struct {
	Role Role
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Role, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func (e *StepError) Is(target error) bool { return target == ErrStepFailed }

// UnknownActionError is raised when a provider requests an action that has no
// handler.
type UnknownActionError struct {
	Name string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.Name)
}

func (e *UnknownActionError) Is(target error) bool { return target == ErrUnknownAction }

// Validation is shorthand for a *ValidationError.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
