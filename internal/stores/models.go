package stores

import "github.com/pal-ai/gateway/pkg/polyline"

// Store is an agri-supply store farmers can buy treatments from
type Store struct {
	ID           string              `json:"id" validate:"required"`
	Name         string              `json:"name" validate:"required"`
	Address      string              `json:"address"`
	Province     string              `json:"province" validate:"required"`
	Municipality string              `json:"municipality" validate:"required"`
	Barangay     string              `json:"barangay"`
	Location     polyline.Coordinate `json:"location"`
	Products     []string            `json:"products,omitempty"`
	Rating       float64             `json:"rating" validate:"gte=0,lte=5"`
	Phone        string              `json:"phone,omitempty" validate:"omitempty,phone"`
	OpeningHours string              `json:"opening_hours,omitempty"`
}

// Sort orders accepted by Search
const (
	SortByDistance = "distance"
	SortByName     = "name"
	SortByRating   = "rating"
)

// Query filters the catalog. Empty fields match everything.
type Query struct {
	Text         string
	Province     string
	Municipality string
	Barangay     string
	Product      string
	Near         *polyline.Coordinate
	RadiusKm     float64
	SortBy       string
	Limit        int
	Offset       int
}

// Result is a matched store with its distance from Query.Near
type Result struct {
	Store
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	DistanceText   string   `json:"distance_text,omitempty"`
}

// Regions is the address cascade for one level
type Regions struct {
	Province     string   `json:"province,omitempty"`
	Municipality string   `json:"municipality,omitempty"`
	Options      []string `json:"options"`
}
