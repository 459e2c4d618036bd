package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pal-ai/gateway/pkg/common"
)

// Gin context keys populated by the session middleware.
const (
	UserIDKey    = "user_id"
	RoleKey      = "role"
	SessionIDKey = "session_id"
)

// Roles known to the gateway.
const (
	RoleFarmer = "farmer"
	RoleAdmin  = "admin"
)

// RequireRole ensures the authenticated session carries one of roles.
// It must run after the session middleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role := c.GetString(RoleKey)
		if role == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "authorization required")
			c.Abort()
			return
		}

		if _, ok := allowed[role]; !ok {
			common.ErrorResponse(c, http.StatusForbidden, "insufficient role")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireAdmin ensures only admin users can access the endpoint
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(RoleAdmin)
}
