package errors

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/pal-ai/gateway/pkg/config"
)

// sensitiveHeaders never leave the process.
var sensitiveHeaders = map[string]bool{
	"Authorization":  true,
	"Cookie":         true,
	"X-Api-Key":      true,
	"X-Goog-Api-Key": true,
}

// InitSentry initializes the Sentry SDK. It returns false without error
// when no DSN is configured.
func InitSentry(cfg config.SentryConfig, environment, release, serverName string) (bool, error) {
	if cfg.DSN == "" {
		return false, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      environment,
		Release:          release,
		ServerName:       serverName,
		SampleRate:       1.0,
		TracesSampleRate: cfg.TracesSampleRate,
		EnableTracing:    cfg.TracesSampleRate > 0,
		AttachStacktrace: true,
		BeforeSend:       beforeSend,
		BeforeBreadcrumb: beforeBreadcrumb,
	})
	if err != nil {
		return false, fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return true, nil
}

// Flush waits for buffered events to be delivered.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Level == sentry.LevelInfo || event.Level == sentry.LevelDebug {
		return nil
	}
	if event.Request != nil {
		for key := range event.Request.Headers {
			if sensitiveHeaders[http.CanonicalHeaderKey(key)] {
				event.Request.Headers[key] = "[REDACTED]"
			}
		}
		event.Request.Cookies = ""
	}
	return event
}

func beforeBreadcrumb(breadcrumb *sentry.Breadcrumb, _ *sentry.BreadcrumbHint) *sentry.Breadcrumb {
	if breadcrumb.Category == "http" && breadcrumb.Data != nil {
		delete(breadcrumb.Data, "Authorization")
		delete(breadcrumb.Data, "Cookie")
	}
	return breadcrumb
}

// CaptureError reports err on the hub attached to ctx, falling back to a
// clone of the current hub.
func CaptureError(ctx context.Context, err error, extras map[string]interface{}) *sentry.EventID {
	if err == nil {
		return nil
	}

	hub := hubFromContext(ctx)
	var id *sentry.EventID
	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		if c, ok := ctx.(*gin.Context); ok {
			addGinContextToScope(scope, c)
		}
		id = hub.CaptureException(err)
	})
	return id
}

// AddBreadcrumbForRequest records a finished request.
func AddBreadcrumbForRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	hubFromContext(ctx).AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "http",
		Category:  "http.request",
		Level:     sentry.LevelInfo,
		Message:   fmt.Sprintf("%s %s", method, route),
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"method":      method,
			"route":       route,
			"status_code": statusCode,
			"duration_ms": duration.Milliseconds(),
		},
	}, nil)
}

// ShouldReportError reports server-side failures only. Client errors are
// expected traffic, except for 429 which points at quota trouble.
func ShouldReportError(err error, statusCode int) bool {
	if err == nil {
		return false
	}
	if statusCode >= 400 && statusCode < 500 && statusCode != http.StatusTooManyRequests {
		return false
	}
	return true
}

// LevelForStatus maps an HTTP status onto a Sentry level.
func LevelForStatus(statusCode int) sentry.Level {
	switch {
	case statusCode >= 500:
		return sentry.LevelError
	case statusCode >= 400:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}

func hubFromContext(ctx context.Context) *sentry.Hub {
	if ctx != nil {
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			return hub
		}
		if c, ok := ctx.(*gin.Context); ok && c.Request != nil {
			if hub := sentry.GetHubFromContext(c.Request.Context()); hub != nil {
				return hub
			}
		}
	}
	return sentry.CurrentHub().Clone()
}

func addGinContextToScope(scope *sentry.Scope, c *gin.Context) {
	if c.Request == nil {
		return
	}
	scope.SetRequest(c.Request)

	if userID, exists := c.Get("user_id"); exists {
		scope.SetUser(sentry.User{ID: fmt.Sprintf("%v", userID)})
	}
	if correlationID := c.GetHeader("X-Request-ID"); correlationID != "" {
		scope.SetTag("correlation_id", correlationID)
	}
	if traceID := c.Writer.Header().Get("X-Trace-ID"); traceID != "" {
		scope.SetTag("trace_id", traceID)
	}

	scope.SetContext("http", map[string]interface{}{
		"method":      c.Request.Method,
		"route":       c.FullPath(),
		"headers":     sanitizeHeaders(c.Request.Header),
		"remote_addr": c.ClientIP(),
		"user_agent":  c.Request.UserAgent(),
	})
}

func sanitizeHeaders(headers http.Header) map[string]string {
	sanitized := make(map[string]string, len(headers))
	for key, values := range headers {
		if sensitiveHeaders[http.CanonicalHeaderKey(key)] {
			sanitized[key] = "[REDACTED]"
		} else if len(values) > 0 {
			sanitized[key] = values[0]
		}
	}
	return sanitized
}
