package server

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studiokit/kassza/internal/observability/logger"
	obsmetrics "github.com/studiokit/kassza/internal/observability/metrics"
	"github.com/studiokit/kassza/internal/ratelimit"
	"go.uber.org/zap"
)

const rateLimitReasonAPIRate = "api-rate"

// WriteLimit throttles a write endpoint per client IP. With no limiter
// configured the middleware is a pass-through, so single-instance
// deployments without redis keep working.
func (s *Server) WriteLimit(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiLimiter == nil || !s.apiLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.apiLimiter.Allow(ctx, endpoint, c.ClientIP())
		if err != nil {
			// Fail closed: a broken limiter must not let a retry storm
			// through to the database.
			logger.FromContext(ctx).Warn("rate limit check failed",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			denyRateLimit(c, endpoint, result, s.obsMetrics)
			return
		}

		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

func denyRateLimit(c *gin.Context, endpoint string, result *ratelimit.RateLimitResult, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("rate limit exceeded",
		zap.String("reason", rateLimitReasonAPIRate),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, rateLimitReasonAPIRate, metrics)

	c.Header("Retry-After", retryAfterSeconds(result.RetryAfter))
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-Rate-Limited-Reason", rateLimitReasonAPIRate)
	AbortWithError(c, ErrRateLimited)
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int(d / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}
