package weather

import "time"

// Report is the current weather at a farm location
type Report struct {
	Location     string    `json:"location"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Condition    string    `json:"condition"`
	Description  string    `json:"description"`
	Icon         string    `json:"icon,omitempty"`
	TemperatureC float64   `json:"temperature_c"`
	FeelsLikeC   float64   `json:"feels_like_c"`
	Humidity     int       `json:"humidity"`
	WindSpeed    float64   `json:"wind_speed_mps"`
	Rainfall1h   float64   `json:"rainfall_1h_mm"`
	ObservedAt   time.Time `json:"observed_at"`
	Advisory     string    `json:"advisory"`
	Advisories   []string  `json:"advisories,omitempty"`
	CacheHit     bool      `json:"cache_hit,omitempty"`
}

// Units accepted by OpenWeather
const (
	UnitsMetric   = "metric"
	UnitsImperial = "imperial"
	UnitsStandard = "standard"
)

type owmResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain *struct {
		OneHour float64 `json:"1h"`
	} `json:"rain,omitempty"`
	Dt   int64  `json:"dt"`
	Name string `json:"name"`
}
