package infra

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket holding up to maxTokens requests that
// gains one token every refillRate.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a full bucket of maxTokens. A non-positive
// refillRate disables limiting.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	if maxTokens <= 0 {
		maxTokens = 1
	}
	limit := rate.Inf
	if refillRate > 0 {
		limit = rate.Every(refillRate)
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, maxTokens)}
}

// Wait blocks until a token is available or ctx is done. A wait that would
// outlast ctx's deadline fails immediately with context.DeadlineExceeded.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return nil
}
