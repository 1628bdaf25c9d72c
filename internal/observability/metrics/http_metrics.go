package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetrics holds the request-level instruments for the HTTP surface.
type HTTPMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewHTTPMetrics configures the HTTP instruments.
func NewHTTPMetrics(provider metric.MeterProvider) (*HTTPMetrics, error) {
	meter := provider.Meter("kassza/http")

	requests, err := meter.Int64Counter("kassza_http_requests_total")
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"kassza_http_request_duration_seconds",
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		requests: requests,
		duration: duration,
	}, nil
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			// Unmatched routes collapse into one label to bound cardinality.
			route = "unmatched"
		}

		attrs := []attribute.KeyValue{
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		}

		m.requests.Add(c.Request.Context(), 1, metric.WithAttributes(attrs...))
		m.duration.Record(c.Request.Context(), time.Since(start).Seconds(), metric.WithAttributes(attrs...))
	}
}
