package image

import (
	"context"
	"errors"
	"time"

	"boardgen/internal/domain"
)

// GenerateWithin runs g under a hard deadline. When the deadline fires the
// call fails with *domain.TimeoutError instead of the provider's error.
func GenerateWithin(ctx context.Context, g Generator, req Request, timeout time.Duration) (Asset, error) {
	return Within(ctx, "image generation", timeout, func(ctx context.Context) (Asset, error) {
		return g.Generate(ctx, req)
	})
}

// Within runs fn under timeout and reports an expired deadline as
// *domain.TimeoutError named op. A zero timeout runs fn on ctx unchanged.
func Within[T any](ctx context.Context, op string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := fn(cctx)
	if err != nil && ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		var zero T
		return zero, &domain.TimeoutError{Op: op, Elapsed: time.Since(start)}
	}
	return out, err
}
