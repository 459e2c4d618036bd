package stores

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pal-ai/gateway/internal/maps"
	"github.com/pal-ai/gateway/pkg/common"
	"github.com/pal-ai/gateway/pkg/pagination"
	"github.com/pal-ai/gateway/pkg/polyline"
)

// Directions computes a route to a store
type Directions interface {
	GetRoute(ctx context.Context, req *maps.RouteRequest) (*maps.RouteResponse, error)
}

// Handler handles HTTP requests for the store locator
type Handler struct {
	catalog    *Catalog
	directions Directions
}

// NewHandler creates a new store locator handler
func NewHandler(catalog *Catalog, directions Directions) *Handler {
	return &Handler{catalog: catalog, directions: directions}
}

// RegisterRoutes registers store locator routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	stores := rg.Group("/stores")
	{
		stores.GET("", h.Search)
		stores.GET("/regions", h.GetRegions)
		stores.GET("/:id", h.GetStore)
		stores.POST("/:id/route", h.GetRouteToStore)
	}
}

type searchQuery struct {
	Text         string   `form:"q" binding:"omitempty,max=100"`
	Province     string   `form:"province"`
	Municipality string   `form:"municipality"`
	Barangay     string   `form:"barangay"`
	Product      string   `form:"product"`
	Lat          *float64 `form:"lat" binding:"required_with=Lng,omitempty,min=-90,max=90"`
	Lng          *float64 `form:"lng" binding:"required_with=Lat,omitempty,min=-180,max=180"`
	RadiusKm     float64  `form:"radius_km" binding:"omitempty,gt=0,lte=500"`
	SortBy       string   `form:"sort" binding:"omitempty,oneof=distance name rating"`
	Limit        int      `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset       int      `form:"offset" binding:"omitempty,min=0"`
}

// Search lists stores matching the query
func (h *Handler) Search(c *gin.Context) {
	var q searchQuery
	if !common.BindQuery(c, &q) {
		return
	}

	query := Query{
		Text:         q.Text,
		Province:     q.Province,
		Municipality: q.Municipality,
		Barangay:     q.Barangay,
		Product:      q.Product,
		RadiusKm:     q.RadiusKm,
		SortBy:       q.SortBy,
		Limit:        q.Limit,
		Offset:       q.Offset,
	}
	if q.Lat != nil && q.Lng != nil {
		query.Near = &polyline.Coordinate{Latitude: *q.Lat, Longitude: *q.Lng}
	}

	results, total := h.catalog.SearchPage(query)
	common.SuccessResponseWithMeta(c, results, pagination.BuildMeta(pagination.Normalize(q.Limit, q.Offset), total))
}

// GetStore returns one store
func (h *Handler) GetStore(c *gin.Context) {
	store, err := h.catalog.Get(c.Param("id"))
	if err != nil {
		common.AppErrorResponse(c, common.NewNotFoundError("store not found", err))
		return
	}
	common.SuccessResponse(c, store)
}

type regionsQuery struct {
	Province     string `form:"province"`
	Municipality string `form:"municipality"`
}

// GetRegions returns the next level of the province > municipality > barangay cascade
func (h *Handler) GetRegions(c *gin.Context) {
	var q regionsQuery
	if !common.BindQuery(c, &q) {
		return
	}

	regions := Regions{Province: q.Province, Municipality: q.Municipality}
	switch {
	case q.Province == "" && q.Municipality != "":
		common.ErrorResponse(c, http.StatusBadRequest, "municipality requires province")
		return
	case q.Province == "":
		regions.Options = h.catalog.Provinces()
	case q.Municipality == "":
		regions.Options = h.catalog.Municipalities(q.Province)
	default:
		regions.Options = h.catalog.Barangays(q.Province, q.Municipality)
	}

	common.SuccessResponse(c, regions)
}

// RouteToStoreRequest is the caller's position and travel preference
type RouteToStoreRequest struct {
	Origin *polyline.Coordinate `json:"origin" binding:"required"`
	Mode   maps.TravelMode      `json:"mode,omitempty" binding:"omitempty,oneof=driving walking bicycling"`
}

// RouteToStoreResponse pairs a store with directions to it
type RouteToStoreResponse struct {
	Store *Store              `json:"store"`
	Route *maps.RouteResponse `json:"route"`
}

// GetRouteToStore returns directions from the caller to a store
func (h *Handler) GetRouteToStore(c *gin.Context) {
	store, err := h.catalog.Get(c.Param("id"))
	if err != nil {
		common.AppErrorResponse(c, common.NewNotFoundError("store not found", err))
		return
	}

	var req RouteToStoreRequest
	if !common.BindJSON(c, &req) {
		return
	}
	origin := *req.Origin
	if origin.Latitude < -90 || origin.Latitude > 90 || origin.Longitude < -180 || origin.Longitude > 180 {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid coordinates")
		return
	}

	route, err := h.directions.GetRoute(c.Request.Context(), &maps.RouteRequest{
		Origin:      origin,
		Destination: store.Location,
		Mode:        req.Mode,
	})
	if common.HandleServiceError(c, maps.RouteError(err), "failed to calculate route") {
		return
	}

	common.SuccessResponse(c, RouteToStoreResponse{Store: store, Route: route})
}
