package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS handles Cross-Origin Resource Sharing for the admin web console.
// The mobile app does not send an Origin header and is unaffected. "*" in
// origins allows any origin.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", CorrelationIDHeader, "Cache-Control", "X-Requested-With"},
		ExposeHeaders:    []string{CorrelationIDHeader, TraceIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}

	allowed := make([]string, 0, len(origins))
	allowAll := false
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch {
		case o == "*":
			allowAll = true
		case strings.HasPrefix(o, "http://"), strings.HasPrefix(o, "https://"):
			allowed = append(allowed, o)
		}
	}

	switch {
	case allowAll:
		// echo the origin back; a literal "*" is not allowed with credentials
		cfg.AllowOriginFunc = func(string) bool { return true }
	case len(allowed) == 0:
		cfg.AllowOriginFunc = func(string) bool { return false }
	default:
		cfg.AllowOrigins = allowed
	}

	return cors.New(cfg)
}
