package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pal-ai/gateway/pkg/logger"
)

const (
	// CorrelationIDHeader is the header name for correlation ID
	CorrelationIDHeader = "X-Request-ID"
	// CorrelationIDKey is the gin context key for correlation ID
	CorrelationIDKey = "correlation_id"
)

// CorrelationID reuses a client supplied X-Request-ID when it is a valid UUID
// and otherwise mints a new one. The ID is echoed on the response and carried
// on the request context so upstream calls and logs share it.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := normalizeCorrelationID(c.GetHeader(CorrelationIDHeader))

		c.Set(CorrelationIDKey, correlationID)
		c.Request = c.Request.WithContext(
			logger.ContextWithCorrelationID(c.Request.Context(), correlationID),
		)
		c.Writer.Header().Set(CorrelationIDHeader, correlationID)

		c.Next()
	}
}

func normalizeCorrelationID(raw string) string {
	raw = strings.TrimSpace(raw)
	if parsed, err := uuid.Parse(raw); err == nil {
		return parsed.String()
	}
	return uuid.NewString()
}

// GetCorrelationID extracts correlation ID from gin context
func GetCorrelationID(c *gin.Context) string {
	if id := c.GetString(CorrelationIDKey); id != "" {
		return id
	}
	return logger.CorrelationIDFromContext(c.Request.Context())
}
