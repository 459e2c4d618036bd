package maps

import (
	"time"

	"github.com/pal-ai/gateway/pkg/polyline"
)

// Provider identifies a directions backend
type Provider string

const (
	ProviderGoogle       Provider = "google"
	ProviderStraightLine Provider = "straight_line"
)

// TravelMode selects the directions profile
type TravelMode string

const (
	ModeDriving   TravelMode = "driving"
	ModeWalking   TravelMode = "walking"
	ModeBicycling TravelMode = "bicycling"
)

// Coordinate is a point in degrees. It is the same type the polyline decoder
// produces so decoded paths flow through without conversion.
type Coordinate = polyline.Coordinate

// RouteRequest represents a request for route calculation
type RouteRequest struct {
	Origin        Coordinate `json:"origin"`
	Destination   Coordinate `json:"destination"`
	Mode          TravelMode `json:"mode,omitempty" binding:"omitempty,oneof=driving walking bicycling"`
	Alternatives  bool       `json:"alternatives,omitempty"`
	AvoidTolls    bool       `json:"avoid_tolls,omitempty"`
	AvoidHighways bool       `json:"avoid_highways,omitempty"`
	AvoidFerries  bool       `json:"avoid_ferries,omitempty"`
}

// RouteBody is the JSON body of POST /maps/route. The endpoints are pointers
// so a missing object is rejected rather than read as (0,0).
type RouteBody struct {
	Origin        *Coordinate `json:"origin" binding:"required"`
	Destination   *Coordinate `json:"destination" binding:"required"`
	Mode          TravelMode  `json:"mode,omitempty" binding:"omitempty,oneof=driving walking bicycling"`
	Alternatives  bool        `json:"alternatives,omitempty"`
	AvoidTolls    bool        `json:"avoid_tolls,omitempty"`
	AvoidHighways bool        `json:"avoid_highways,omitempty"`
	AvoidFerries  bool        `json:"avoid_ferries,omitempty"`
}

func (b RouteBody) toRequest() *RouteRequest {
	return &RouteRequest{
		Origin:        *b.Origin,
		Destination:   *b.Destination,
		Mode:          b.Mode,
		Alternatives:  b.Alternatives,
		AvoidTolls:    b.AvoidTolls,
		AvoidHighways: b.AvoidHighways,
		AvoidFerries:  b.AvoidFerries,
	}
}

// RouteResponse represents the response from a route calculation
type RouteResponse struct {
	Routes      []Route   `json:"routes"`
	Provider    Provider  `json:"provider"`
	RequestedAt time.Time `json:"requested_at"`
	CacheHit    bool      `json:"cache_hit,omitempty"`
	// Approximate is set when no provider answered and the route is a
	// straight line between the endpoints.
	Approximate bool `json:"approximate,omitempty"`
}

// Best returns the first (recommended) route, or nil when there is none.
func (r *RouteResponse) Best() *Route {
	if r == nil || len(r.Routes) == 0 {
		return nil
	}
	return &r.Routes[0]
}

// Route is a drawable path plus the distance and duration reported upstream.
// The text fields are copied verbatim and never parsed.
type Route struct {
	Summary         string       `json:"summary,omitempty"`
	EncodedPolyline string       `json:"encoded_polyline,omitempty"`
	Coordinates     []Coordinate `json:"coordinates"`
	DistanceText    string       `json:"distance_text,omitempty"`
	DistanceMeters  int          `json:"distance_meters"`
	DurationText    string       `json:"duration_text,omitempty"`
	DurationSeconds int          `json:"duration_seconds"`
	StartAddress    string       `json:"start_address,omitempty"`
	EndAddress      string       `json:"end_address,omitempty"`
	BoundingBox     *BoundingBox `json:"bounding_box,omitempty"`
	Warnings        []string     `json:"warnings,omitempty"`
}

// BoundingBox represents the geographic bounds of a route
type BoundingBox struct {
	Northeast Coordinate `json:"northeast"`
	Southwest Coordinate `json:"southwest"`
}

// DecodeRequest is the body of the polyline decode endpoint
type DecodeRequest struct {
	Polyline  string `json:"polyline"`
	Precision int    `json:"precision,omitempty" binding:"omitempty,min=1,max=7"`
}

// DecodeResponse carries a decoded path
type DecodeResponse struct {
	Coordinates []Coordinate `json:"coordinates"`
	Count       int          `json:"count"`
}

// ProviderHealth is one entry of the health endpoint
type ProviderHealth struct {
	Provider Provider `json:"provider"`
	Healthy  bool     `json:"healthy"`
	Error    string   `json:"error,omitempty"`
}

func isValidCoordinate(c Coordinate) bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}
