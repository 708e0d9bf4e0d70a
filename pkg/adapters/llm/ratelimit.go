package llm

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/aretw0/marginalia/pkg/assist"
)

// RateLimitConfig holds rate limiting configuration for a generation backend.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// DefaultRateLimit keeps keystroke-driven autocomplete well under hosted quotas.
var DefaultRateLimit = RateLimitConfig{RequestsPerSecond: 2, BurstSize: 4}

// Limited throttles a generator with a token bucket. Waiting honours the
// request context, so a cancelled autocomplete never reaches the backend.
type Limited struct {
	next    assist.Generator
	limiter *rate.Limiter
}

// NewLimited wraps next.
func NewLimited(next assist.Generator, cfg RateLimitConfig) *Limited {
	if cfg.RequestsPerSecond <= 0 {
		cfg = DefaultRateLimit
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Generate implements assist.Generator.
func (l *Limited) Generate(ctx context.Context, req assist.Request) (assist.Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return assist.Response{}, err
	}
	return l.next.Generate(ctx, req)
}

var _ assist.Generator = (*Limited)(nil)
