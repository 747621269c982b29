package image

import (
	"context"
	"time"

	"boardgen/internal/infra"
)

// RetryPolicy is bounded exponential backoff without jitter: the wait before
// retry k (1-indexed) is BaseDelay * 2^(k-1).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	// Sleep waits for d or until ctx is done. Nil uses a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry observes each failed attempt that will be retried.
	OnRetry func(retry int, delay time.Duration, err error)
}

// DefaultRetryPolicy is 3 retries starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second}
}

// RetryPolicyFrom overlays configured values on DefaultRetryPolicy. A
// negative maxRetries or a non-positive base keeps the default.
func RetryPolicyFrom(maxRetries int, base time.Duration) RetryPolicy {
	p := DefaultRetryPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if base > 0 {
		p.BaseDelay = base
	}
	return p
}

// Delay returns the wait before retry k.
func (p RetryPolicy) Delay(k int) time.Duration {
	if k < 1 {
		return 0
	}
	return p.BaseDelay << (k - 1)
}

// Retry calls fn once plus up to MaxRetries more times. The last error is
// returned unchanged; a cancelled ctx during a wait returns ctx.Err().
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	for retry := 0; ; retry++ {
		out, err := fn(ctx)
		if err == nil || retry >= p.MaxRetries {
			return out, err
		}
		delay := p.Delay(retry + 1)
		if p.OnRetry != nil {
			p.OnRetry(retry+1, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			var zero T
			return zero, serr
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryingGenerator validates once, then retries the wrapped generator.
type RetryingGenerator struct {
	next   Generator
	policy RetryPolicy
	logger *infra.Logger
}

func NewRetryingGenerator(next Generator, policy RetryPolicy, logger *infra.Logger) *RetryingGenerator {
	return &RetryingGenerator{next: next, policy: policy, logger: infra.OrDiscard(logger)}
}

func (r *RetryingGenerator) Generate(ctx context.Context, req Request) (Asset, error) {
	if err := req.Validate(); err != nil {
		return Asset{}, err
	}
	policy := r.policy
	onRetry := policy.OnRetry
	policy.OnRetry = func(retry int, delay time.Duration, err error) {
		r.logger.Warn().Err(err).Int("retry", retry).Dur("delay", delay).Msg("image generation failed, retrying")
		if onRetry != nil {
			onRetry(retry, delay, err)
		}
	}
	return Retry(ctx, policy, func(ctx context.Context) (Asset, error) {
		return r.next.Generate(ctx, req)
	})
}

var _ Generator = (*RetryingGenerator)(nil)
