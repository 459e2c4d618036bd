package geo

import (
	"fmt"
	"math"
	"time"

	"github.com/pal-ai/gateway/pkg/polyline"
)

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in kilometres between two
// coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// DistanceMeters returns the great-circle distance between a and b in metres.
func DistanceMeters(a, b polyline.Coordinate) float64 {
	return Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude) * 1000
}

// PathLengthMeters sums the segment lengths of an ordered path.
func PathLengthMeters(path []polyline.Coordinate) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += DistanceMeters(path[i-1], path[i])
	}
	return total
}

// EstimateDuration returns the travel time for distanceKm at an average speed.
func EstimateDuration(distanceKm, speedKmh float64) time.Duration {
	if speedKmh <= 0 {
		return 0
	}
	return time.Duration(distanceKm / speedKmh * float64(time.Hour)).Round(time.Second)
}

// FormatDistance renders metres the way directions providers do ("850 m", "12.3 km").
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// FormatDuration renders a duration as "25 mins" or "1 hour 5 mins".
func FormatDuration(d time.Duration) string {
	mins := int(math.Ceil(d.Minutes()))
	if mins < 1 {
		mins = 1
	}
	hours, mins := mins/60, mins%60

	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s", unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	switch {
	case hours == 0:
		return plural(mins, "min")
	case mins == 0:
		return plural(hours, "hour")
	default:
		return plural(hours, "hour") + " " + plural(mins, "min")
	}
}
