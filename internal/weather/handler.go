package weather

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pal-ai/gateway/pkg/common"
	"github.com/pal-ai/gateway/pkg/resilience"
)

// Reporter is the service behind the weather endpoint
type Reporter interface {
	Current(ctx context.Context, lat, lng float64) (*Report, error)
}

// Handler serves weather reports
type Handler struct {
	service Reporter
}

// NewHandler creates a new weather handler
func NewHandler(service Reporter) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers weather routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/weather", h.GetCurrent)
}

type currentQuery struct {
	Lat *float64 `form:"lat" binding:"required,min=-90,max=90"`
	Lng *float64 `form:"lng" binding:"required,min=-180,max=180"`
}

// GetCurrent returns current conditions and a farm advisory
func (h *Handler) GetCurrent(c *gin.Context) {
	var q currentQuery
	if !common.BindQuery(c, &q) {
		return
	}

	report, err := h.service.Current(c.Request.Context(), *q.Lat, *q.Lng)
	if err != nil {
		common.HandleServiceError(c, weatherError(err), "weather unavailable")
		return
	}

	common.SuccessResponse(c, report)
}

func weatherError(err error) *common.AppError {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return common.NewAppError(http.StatusServiceUnavailable, "weather temporarily unavailable", err).
			WithErrorCode("WEATHER_UNAVAILABLE")
	case errors.Is(err, context.DeadlineExceeded):
		return common.NewAppError(http.StatusGatewayTimeout, "weather request timed out", err)
	default:
		return common.NewUpstreamError("weather unavailable", err)
	}
}
