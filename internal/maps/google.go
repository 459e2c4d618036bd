package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pal-ai/gateway/pkg/httpclient"
	"github.com/pal-ai/gateway/pkg/logger"
	"github.com/pal-ai/gateway/pkg/polyline"
	"github.com/pal-ai/gateway/pkg/resilience"
	"go.uber.org/zap"
)

const (
	googleMapsBaseURL        = "https://maps.googleapis.com/maps/api"
	googleDirectionsEndpoint = "/directions/json"
	googleStatusOK           = "OK"
)

// errUpstreamPolyline marks a decode failure on a provider's own response, as
// opposed to a polyline submitted by the client.
var errUpstreamPolyline = errors.New("provider returned malformed polyline")

// GoogleDirectionsProvider implements DirectionsProvider for the Google
// Directions API.
type GoogleDirectionsProvider struct {
	apiKey string
	client *httpclient.Client
}

// NewGoogleDirectionsProvider creates a new Google directions provider
func NewGoogleDirectionsProvider(config ProviderConfig) *GoogleDirectionsProvider {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = googleMapsBaseURL
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &GoogleDirectionsProvider{
		apiKey: config.APIKey,
		client: httpclient.NewClient(baseURL, timeout,
			httpclient.WithName("google-directions"),
			httpclient.WithRetry(resilience.InteractiveRetryConfig()),
		),
	}
}

// Name returns the provider name
func (g *GoogleDirectionsProvider) Name() Provider {
	return ProviderGoogle
}

// HealthCheck verifies the API key is accepted with a trivial directions query.
func (g *GoogleDirectionsProvider) HealthCheck(ctx context.Context) error {
	params := url.Values{}
	params.Set("origin", "15.7155,120.9037")
	params.Set("destination", "15.7160,120.9040")
	params.Set("key", g.apiKey)

	var result googleDirectionsResponse
	if err := g.client.GetJSON(ctx, googleDirectionsEndpoint+"?"+params.Encode(), nil, &result); err != nil {
		return fmt.Errorf("google directions health check failed: %w", err)
	}

	if result.Status != googleStatusOK && result.Status != "ZERO_RESULTS" {
		return &ProviderError{Provider: ProviderGoogle, Status: result.Status, Message: result.ErrorMessage}
	}

	return nil
}

// GetRoute fetches directions and decodes each overview polyline into
// coordinates.
func (g *GoogleDirectionsProvider) GetRoute(ctx context.Context, req *RouteRequest) (*RouteResponse, error) {
	params := g.routeParams(req)

	logger.DebugContext(ctx, "Google directions request",
		zap.String("origin", params.Get("origin")),
		zap.String("destination", params.Get("destination")),
		zap.String("mode", params.Get("mode")),
	)

	resp, err := g.client.Get(ctx, googleDirectionsEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("google directions request failed: %w", err)
	}

	var googleResp googleDirectionsResponse
	if err := json.Unmarshal(resp, &googleResp); err != nil {
		return nil, fmt.Errorf("failed to parse directions response: %w", err)
	}

	if googleResp.Status != googleStatusOK {
		return nil, &ProviderError{
			Provider: ProviderGoogle,
			Status:   googleResp.Status,
			Message:  googleResp.ErrorMessage,
		}
	}

	return convertDirectionsResponse(&googleResp)
}

func (g *GoogleDirectionsProvider) routeParams(req *RouteRequest) url.Values {
	params := url.Values{}
	params.Set("origin", formatCoordinate(req.Origin))
	params.Set("destination", formatCoordinate(req.Destination))
	params.Set("key", g.apiKey)
	params.Set("units", "metric")

	mode := req.Mode
	if mode == "" {
		mode = ModeDriving
	}
	params.Set("mode", string(mode))

	var avoid []string
	if req.AvoidTolls {
		avoid = append(avoid, "tolls")
	}
	if req.AvoidHighways {
		avoid = append(avoid, "highways")
	}
	if req.AvoidFerries {
		avoid = append(avoid, "ferries")
	}
	if len(avoid) > 0 {
		params.Set("avoid", strings.Join(avoid, "|"))
	}

	if req.Alternatives {
		params.Set("alternatives", "true")
	}

	return params
}

func formatCoordinate(c Coordinate) string {
	return strconv.FormatFloat(c.Latitude, 'f', 6, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', 6, 64)
}

func convertDirectionsResponse(resp *googleDirectionsResponse) (*RouteResponse, error) {
	routes := make([]Route, 0, len(resp.Routes))

	for i, r := range resp.Routes {
		coords, err := polyline.Decode(r.OverviewPolyline.Points)
		if err != nil {
			return nil, fmt.Errorf("%w (route %d): %w", errUpstreamPolyline, i, err)
		}

		route := Route{
			Summary:         r.Summary,
			EncodedPolyline: r.OverviewPolyline.Points,
			Coordinates:     coords,
			Warnings:        r.Warnings,
		}

		if len(r.Legs) > 0 {
			leg := r.Legs[0]
			route.DistanceText = leg.Distance.Text
			route.DistanceMeters = leg.Distance.Value
			route.DurationText = leg.Duration.Text
			route.DurationSeconds = leg.Duration.Value
			route.StartAddress = leg.StartAddress
			route.EndAddress = leg.EndAddress
		}

		if r.Bounds != nil {
			route.BoundingBox = &BoundingBox{
				Northeast: Coordinate{Latitude: r.Bounds.Northeast.Lat, Longitude: r.Bounds.Northeast.Lng},
				Southwest: Coordinate{Latitude: r.Bounds.Southwest.Lat, Longitude: r.Bounds.Southwest.Lng},
			}
		}

		routes = append(routes, route)
	}

	if len(routes) == 0 {
		return nil, &ProviderError{Provider: ProviderGoogle, Status: "ZERO_RESULTS"}
	}

	return &RouteResponse{
		Routes:      routes,
		Provider:    ProviderGoogle,
		RequestedAt: time.Now(),
	}, nil
}

// Google API response types

type googleDirectionsResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Routes       []googleRoute `json:"routes"`
}

type googleRoute struct {
	Summary          string         `json:"summary"`
	Legs             []googleLeg    `json:"legs"`
	OverviewPolyline googlePolyline `json:"overview_polyline"`
	Bounds           *googleBounds  `json:"bounds"`
	Warnings         []string       `json:"warnings"`
}

type googleLeg struct {
	StartAddress string      `json:"start_address"`
	EndAddress   string      `json:"end_address"`
	Distance     googleValue `json:"distance"`
	Duration     googleValue `json:"duration"`
}

type googlePolyline struct {
	Points string `json:"points"`
}

type googleBounds struct {
	Northeast googleLatLng `json:"northeast"`
	Southwest googleLatLng `json:"southwest"`
}

type googleLatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type googleValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}
