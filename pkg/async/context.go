package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/pal-ai/gateway/pkg/logger"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TaskContext holds the request values carried over to background work
type TaskContext struct {
	CorrelationID string
	SpanContext   trace.SpanContext
	StartTime     time.Time
	TaskName      string
}

// CaptureContext captures the current context values for async propagation
func CaptureContext(ctx context.Context, taskName string) TaskContext {
	return TaskContext{
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		SpanContext:   trace.SpanContextFromContext(ctx),
		StartTime:     time.Now(),
		TaskName:      taskName,
	}
}

// NewContext returns a fresh context, not cancelled with the request, that
// carries the captured values.
func (tc TaskContext) NewContext() context.Context {
	ctx := context.Background()
	if tc.CorrelationID != "" {
		ctx = logger.ContextWithCorrelationID(ctx, tc.CorrelationID)
	}
	if tc.SpanContext.IsValid() {
		ctx = trace.ContextWithRemoteSpanContext(ctx, tc.SpanContext)
	}
	return ctx
}

// Detach returns a context that outlives ctx but keeps its correlation ID
// and trace.
func Detach(ctx context.Context) context.Context {
	return CaptureContext(ctx, "").NewContext()
}

// Go runs fn on a goroutine with a detached context and panic recovery.
//
//	async.Go(ctx, "navigation-session", func(ctx context.Context) {
//	    consume(ctx, updates)
//	})
func Go(ctx context.Context, taskName string, fn func(ctx context.Context)) {
	tc := CaptureContext(ctx, taskName)

	go func() {
		newCtx := tc.NewContext()
		defer recoverWithLogging(newCtx, tc)

		fn(newCtx)

		logger.DebugContext(newCtx, "async task completed",
			zap.String("task", tc.TaskName),
			zap.Duration("duration", time.Since(tc.StartTime)),
		)
	}()
}

func recoverWithLogging(ctx context.Context, tc TaskContext) {
	if r := recover(); r != nil {
		logger.ErrorContext(ctx, "async task panicked",
			zap.String("task", tc.TaskName),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())),
		)
	}
}
