package session

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pal-ai/gateway/pkg/common"
	"github.com/pal-ai/gateway/pkg/logger"
	"github.com/pal-ai/gateway/pkg/middleware"
	"go.uber.org/zap"
)

// tokenKey holds the raw bearer token for handlers that need it (logout).
const tokenKey = "session_token"

// Validator checks bearer tokens
type Validator interface {
	Validate(ctx context.Context, token string) (*Session, error)
}

// RequireSession authenticates the bearer token and exposes the session's
// user, role and ID on the gin context.
func RequireSession(v Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			common.ErrorResponse(c, http.StatusUnauthorized, "authorization header required")
			c.Abort()
			return
		}

		sess, err := v.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrSessionExpired) {
				common.ErrorResponse(c, http.StatusUnauthorized, "invalid or expired session")
			} else {
				logger.ErrorContext(c.Request.Context(), "session lookup failed", zap.Error(err))
				common.ErrorResponse(c, http.StatusServiceUnavailable, "session store unavailable")
			}
			c.Abort()
			return
		}

		c.Set(middleware.UserIDKey, sess.UserID)
		c.Set(middleware.RoleKey, sess.Role)
		c.Set(middleware.SessionIDKey, sess.ID)
		c.Set(tokenKey, token)
		c.Request = c.Request.WithContext(logger.ContextWithSessionID(c.Request.Context(), sess.ID))

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
