package weather

import "strings"

// Thresholds for farm advisories. Rainfall is mm in the last hour, wind m/s.
const (
	heavyRainMMPerHour = 7.6
	strongWindMPS      = 5.5
	blastHumidity      = 90
	blastMinTempC      = 20.0
	blastMaxTempC      = 30.0
	extremeHeatC       = 35.0
)

const goodConditions = "Good conditions for field work and spraying."

// advise derives rice-farming hints from a report, most urgent first.
func advise(r *Report) []string {
	var out []string
	condition := strings.ToLower(r.Condition)

	switch {
	case r.Rainfall1h >= heavyRainMMPerHour || condition == "thunderstorm":
		out = append(out, "Heavy rain: delay spraying and fertilizer application, and check field drainage.")
	case r.Rainfall1h > 0 || condition == "rain" || condition == "drizzle":
		out = append(out, "Rain: delay spraying so treatments are not washed off.")
	}

	if r.Humidity >= blastHumidity && r.TemperatureC >= blastMinTempC && r.TemperatureC <= blastMaxTempC {
		out = append(out, "High humidity and warm temperatures raise leaf blast risk. Scout leaves for lesions.")
	}

	if r.WindSpeed >= strongWindMPS {
		out = append(out, "Strong wind: avoid spraying to prevent drift.")
	}

	if r.TemperatureC >= extremeHeatC {
		out = append(out, "Extreme heat: keep paddies flooded and avoid midday field work.")
	}

	if len(out) == 0 {
		out = append(out, goodConditions)
	}
	return out
}
