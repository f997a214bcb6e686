package llm

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Completer so calls are admitted at most rps per second.
type RateLimited struct {
	next    Completer
	limiter *rate.Limiter
}

// NewRateLimited returns c unchanged when rps is not positive.
func NewRateLimited(c Completer, rps float64) Completer {
	if rps <= 0 {
		return c
	}
	burst := int(math.Max(1, math.Ceil(rps)))
	return &RateLimited{next: c, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Name() string { return r.next.Name() }

// Complete waits for a token, honoring ctx, before delegating.
func (r *RateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Complete(ctx, req)
}
