package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wardenauth/warden/internal/infrastructure/monitoring"
	"github.com/wardenauth/warden/pkg/constants"
	"github.com/wardenauth/warden/pkg/logger"
)

// RequestID propagates an inbound X-Request-ID or mints one, on both
// the context and the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(constants.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(constants.HeaderRequestID, id)
		c.Writer.Header().Set(constants.HeaderRequestID, id)
		c.Next()
	}
}

// Observability opens a trace span per request and records request
// metrics after the handler chain completes. Metric labels use the
// route template, not the raw path, to keep cardinality bounded.
func Observability(tracer *monitoring.Tracer, metrics *monitoring.Metrics, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx, span := tracer.StartSpan(c.Request.Context(), c.Request.Method+" "+c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = "not_found"
		}

		metrics.ObserveHTTPRequest(c.Request.Method, path, strconv.Itoa(status), elapsed)
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", path),
			attribute.Int("http.status_code", status),
			attribute.String("http.client_ip", c.ClientIP()),
		)

		if status >= 500 {
			log.Warn(ctx, "request failed",
				logger.String("method", c.Request.Method),
				logger.String("path", path),
				logger.Int("status", status),
				logger.Duration("elapsed", elapsed))
		}
	}
}
