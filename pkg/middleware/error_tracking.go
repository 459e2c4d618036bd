package middleware

import (
	"fmt"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	apperrors "github.com/pal-ai/gateway/pkg/errors"
)

// Sentry attaches a per-request hub and reports panics. Register it after
// gin.Recovery; the panic is re-raised once captured.
func Sentry() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// ErrorReporter sends server-side failures recorded on the gin context to
// Sentry and leaves a breadcrumb for every request.
func ErrorReporter() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		apperrors.AddBreadcrumbForRequest(c, c.Request.Method, route, status, time.Since(start))

		reported := false
		for _, ginErr := range c.Errors {
			if apperrors.ShouldReportError(ginErr.Err, status) {
				apperrors.CaptureError(c, ginErr.Err, map[string]interface{}{
					"status_code": status,
				})
				reported = true
			}
		}

		if !reported && status >= 500 {
			apperrors.CaptureError(c, fmt.Errorf("HTTP %d: %s %s", status, c.Request.Method, route), nil)
		}
	}
}
