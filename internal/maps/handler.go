package maps

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pal-ai/gateway/pkg/common"
	"github.com/pal-ai/gateway/pkg/polyline"
)

// RouteService is the part of Service the HTTP layer needs
type RouteService interface {
	GetRoute(ctx context.Context, req *RouteRequest) (*RouteResponse, error)
	DecodePolyline(encoded string, precision int) ([]Coordinate, error)
	HealthCheck(ctx context.Context) []ProviderHealth
	GetPrimaryProvider() Provider
}

// Handler handles HTTP requests for maps functionality
type Handler struct {
	service RouteService
}

// NewHandler creates a new maps handler
func NewHandler(service RouteService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers all maps routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	maps := rg.Group("/maps")
	{
		maps.POST("/route", h.GetRoute)
		maps.POST("/polyline/decode", h.DecodePolyline)
		maps.GET("/health", h.HealthCheck)
	}
}

// GetRoute handles route calculation requests
// @Summary Calculate route between two points
// @Tags Maps
// @Accept json
// @Produce json
// @Param request body RouteBody true "Route request"
// @Success 200 {object} RouteResponse
// @Router /api/v1/maps/route [post]
func (h *Handler) GetRoute(c *gin.Context) {
	var body RouteBody
	if !common.BindJSON(c, &body) {
		return
	}

	if !isValidCoordinate(*body.Origin) || !isValidCoordinate(*body.Destination) {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid coordinates")
		return
	}

	resp, err := h.service.GetRoute(c.Request.Context(), body.toRequest())
	if common.HandleServiceError(c, RouteError(err), "failed to calculate route") {
		return
	}

	common.SuccessResponse(c, resp)
}

// DecodePolyline turns an encoded polyline into coordinates
// @Summary Decode an encoded polyline
// @Tags Maps
// @Accept json
// @Produce json
// @Param request body DecodeRequest true "Encoded polyline"
// @Success 200 {object} DecodeResponse
// @Router /api/v1/maps/polyline/decode [post]
func (h *Handler) DecodePolyline(c *gin.Context) {
	var req DecodeRequest
	if !common.BindJSON(c, &req) {
		return
	}

	coords, err := h.service.DecodePolyline(req.Polyline, req.Precision)
	if common.HandleServiceError(c, RouteError(err), "failed to decode polyline") {
		return
	}

	common.SuccessResponse(c, DecodeResponse{Coordinates: coords, Count: len(coords)})
}

// HealthCheck reports provider health. The gateway stays usable without
// providers thanks to the straight-line fallback, so this never returns 5xx.
func (h *Handler) HealthCheck(c *gin.Context) {
	results := h.service.HealthCheck(c.Request.Context())
	primary := h.service.GetPrimaryProvider()

	status := "healthy"
	for _, r := range results {
		if r.Healthy {
			continue
		}
		if r.Provider == primary {
			status = "unhealthy"
			break
		}
		status = "degraded"
	}

	common.SuccessResponse(c, gin.H{
		"status":    status,
		"primary":   primary,
		"providers": results,
	})
}

// RouteError converts directions and decoding failures to client-facing
// errors. Other packages that expose routes reuse it.
func RouteError(err error) error {
	if err == nil {
		return nil
	}

	var decodeErr *polyline.DecodeError
	switch {
	case errors.As(err, &decodeErr) && !errors.Is(err, errUpstreamPolyline):
		return common.NewBadRequestError("malformed polyline", err).WithErrorCode("INVALID_POLYLINE")
	case errors.Is(err, ErrNoRoute):
		return common.NewNotFoundError("no route found between the given points", err).WithErrorCode("NO_ROUTE")
	case errors.Is(err, ErrInvalidRequest):
		return common.NewBadRequestError("directions request rejected", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return common.NewAppError(http.StatusGatewayTimeout, "directions request timed out", err)
	default:
		return common.NewUpstreamError("directions unavailable", err)
	}
}
