package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/guiqiqi/itmo-moodle-agent/observability"
)

// Metrics opens a server span per request and records the http.server.*
// instruments, keyed by the matched route template.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := observability.StartSpan(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer))
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		observability.SetSpanAttributes(ctx, "http.route", route, "http.status_code", strconv.Itoa(status))
		span.End()
		if m != nil {
			m.RecordRequest(ctx, c.Request.Method, route, status, time.Since(start))
		}
	}
}
