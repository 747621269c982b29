package chat

import (
	"context"
	"errors"
	"time"

	"boardgen/internal/domain"
	"boardgen/internal/infra"
)

// Executor runs one pipeline role: exactly one completion per call.
type Executor struct {
	completer Completer
	maxTokens int
	logger    *infra.Logger
}

// NewExecutor wraps a Completer. A non-positive maxTokens falls back to 1024.
func NewExecutor(c Completer, maxTokens int, logger *infra.Logger) *Executor {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Executor{completer: c, maxTokens: maxTokens, logger: infra.OrDiscard(logger)}
}

// Run sends systemPrompt, text and images to the provider on behalf of role.
// Any failure is returned as a *domain.StepError naming the role.
func (e *Executor) Run(ctx context.Context, role domain.Role, systemPrompt, text string, images []string) (string, error) {
	if e == nil || e.completer == nil {
		return "", &domain.StepError{Role: role, Err: errors.New("chat completer not configured")}
	}
	start := time.Now()
	out, err := e.completer.Complete(ctx, Request{
		SystemPrompt: systemPrompt,
		Text:         text,
		Images:       images,
		MaxTokens:    e.maxTokens,
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("role", string(role)).Dur("elapsed", time.Since(start)).Msg("role step failed")
		return "", &domain.StepError{Role: role, Err: err}
	}
	e.logger.Debug().Str("role", string(role)).Int("chars", len(out)).Dur("elapsed", time.Since(start)).Msg("role step done")
	return out, nil
}
