package middleware

import (
	"time"

	"wholesale_catalog/internal/metrics"
	"wholesale_catalog/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is echoed back so a client can quote it in a report.
const RequestIDHeader = "X-Request-ID"

// RequestLogger tags the request context with a request id, logs completion
// and records HTTP metrics under the matched route pattern.
func RequestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(RequestIDHeader, requestID)
		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.RecordHTTPRequest(c.Request.Method, route, status, duration)

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"client_ip", c.ClientIP(),
			"duration", duration,
		}
		if len(c.Errors) > 0 {
			args = append(args, "errors", c.Errors.String())
		}
		if status >= 500 {
			logger.Error(ctx, "HTTP request failed", args...)
			return
		}
		logger.Info(ctx, "HTTP request completed", args...)
	}
}

// Recovery turns a handler panic into a 500 envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		logger.Error(c.Request.Context(), "HTTP request panicked", "panic", err)
		c.AbortWithStatusJSON(500, gin.H{"code": 500, "msg": "Error interno del servidor"})
	})
}
