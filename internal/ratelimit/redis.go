// Package ratelimit holds the redis-backed coordination primitives:
// a token bucket for API throttling and a lease-style lock shared by
// scheduler instances. Everything degrades to a no-op when no redis
// address is configured, so a single-node studio runs without one.
package ratelimit

import (
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/studiokit/kassza/internal/config"
)

// NewRedisClient returns nil when no address is configured; dependents
// treat a nil client as "feature off".
func NewRedisClient(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr})
}
