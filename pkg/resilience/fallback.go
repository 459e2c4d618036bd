package resilience

import (
	"context"
	"fmt"

	"github.com/pal-ai/gateway/pkg/logger"
	"go.uber.org/zap"
)

// FallbackFunc is executed when the breaker is open or overloaded.
type FallbackFunc func(ctx context.Context, err error) (interface{}, error)

// GracefulDegradation logs the rejected call and reports the dependency as unavailable.
func GracefulDegradation(dependency string) FallbackFunc {
	return func(ctx context.Context, err error) (interface{}, error) {
		logger.WarnContext(ctx, "dependency unavailable, circuit open",
			zap.String("dependency", dependency),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s unavailable: %w", dependency, ErrCircuitOpen)
	}
}
