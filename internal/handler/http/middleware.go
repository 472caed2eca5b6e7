package handler

import (
	"log/slog"
	"time"

	"github.com/aniladanir/webhook-inbox/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// context keys handlers may set to enrich the per-request log line
const (
	logKeyMessageID = "message_id"
	logKeyDup       = "dup"
	logKeyResult    = "result"
)

// requestTelemetry emits one structured log line per request and bumps
// the http outcome counter. Counters are keyed by the route template so
// cardinality stays bounded.
func requestTelemetry(logger *slog.Logger, collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		collector.IncHTTP(route, status)

		attrs := []any{
			slog.String("request_id", uuid.NewString()),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Int64("latency_ms", time.Since(start).Milliseconds()),
		}
		for _, key := range []string{logKeyMessageID, logKeyDup, logKeyResult} {
			if v, ok := c.Get(key); ok {
				attrs = append(attrs, slog.Any(key, v))
			}
		}
		for _, err := range c.Errors {
			attrs = append(attrs, slog.String("error", err.Error()))
		}

		logger.Info("request completed", attrs...)
	}
}
