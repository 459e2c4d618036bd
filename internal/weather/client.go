package weather

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pal-ai/gateway/pkg/httpclient"
	"github.com/pal-ai/gateway/pkg/resilience"
)

// Provider fetches current conditions
type Provider interface {
	Current(ctx context.Context, lat, lng float64) (*Report, error)
}

// Client calls an OpenWeather-compatible /weather endpoint
type Client struct {
	http   *httpclient.Client
	apiKey string
	units  string
}

// NewClient creates a weather API client
func NewClient(baseURL, apiKey, units string, timeout time.Duration) *Client {
	if units == "" {
		units = UnitsMetric
	}
	return &Client{
		http: httpclient.NewClient(baseURL, timeout,
			httpclient.WithName("weather"),
			httpclient.WithRetry(resilience.DefaultRetryConfig()),
		),
		apiKey: apiKey,
		units:  units,
	}
}

// Current returns the current weather at lat,lng
func (c *Client) Current(ctx context.Context, lat, lng float64) (*Report, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("lon", strconv.FormatFloat(lng, 'f', 4, 64))
	params.Set("units", c.units)
	params.Set("appid", c.apiKey)

	var resp owmResponse
	if err := c.http.GetJSON(ctx, "/weather?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}

	return c.toReport(&resp), nil
}

func (c *Client) toReport(resp *owmResponse) *Report {
	r := &Report{
		Location:     resp.Name,
		Latitude:     resp.Coord.Lat,
		Longitude:    resp.Coord.Lon,
		TemperatureC: toCelsius(resp.Main.Temp, c.units),
		FeelsLikeC:   toCelsius(resp.Main.FeelsLike, c.units),
		Humidity:     resp.Main.Humidity,
		WindSpeed:    toMetersPerSecond(resp.Wind.Speed, c.units),
		ObservedAt:   time.Unix(resp.Dt, 0).UTC(),
	}

	if len(resp.Weather) > 0 {
		r.Condition = resp.Weather[0].Main
		r.Description = resp.Weather[0].Description
		r.Icon = resp.Weather[0].Icon
	}
	if resp.Rain != nil {
		r.Rainfall1h = resp.Rain.OneHour
	}

	r.Advisories = advise(r)
	r.Advisory = r.Advisories[0]
	return r
}

func toCelsius(v float64, units string) float64 {
	switch units {
	case UnitsImperial:
		return (v - 32) * 5 / 9
	case UnitsStandard:
		return v - 273.15
	default:
		return v
	}
}

// Imperial wind speeds are reported in miles per hour.
func toMetersPerSecond(v float64, units string) float64 {
	if units == UnitsImperial {
		return v * 0.44704
	}
	return v
}
