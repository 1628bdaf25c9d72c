package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/studiokit/kassza/internal/config"
)

const keyAPIBucket = "kassza:ratelimit:%s:%s"

// APILimiter throttles write endpoints per caller. One bucket per
// (endpoint, client) pair, all instances sharing the same redis state.
type APILimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewAPILimiter(cfg config.Config, client *redis.Client) (*APILimiter, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("rate limit enabled but no redis addr configured")
	}
	if cfg.RateLimit.APIRate <= 0 || cfg.RateLimit.APIBurst <= 0 {
		return nil, errors.New("rate limit rate and burst must be positive")
	}
	return &APILimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.RateLimit.APIRate,
		burst:   cfg.RateLimit.APIBurst,
	}, nil
}

func (l *APILimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow charges one request against the caller's bucket. A disabled
// limiter admits everything.
func (l *APILimiter) Allow(ctx context.Context, endpoint, client string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyAPIBucket, strings.TrimSpace(endpoint), strings.TrimSpace(client))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
