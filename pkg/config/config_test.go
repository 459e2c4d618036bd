package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("test-service")
	require.NoError(t, err)

	assert.Equal(t, "test-service", cfg.Server.ServiceName)
	assert.Equal(t, 15, cfg.Maps.TimeoutSeconds)
	assert.Equal(t, 300, cfg.Maps.CacheTTLSeconds)
	assert.Equal(t, "metric", cfg.Weather.Units)
	assert.Equal(t, 750*time.Millisecond, cfg.Navigation.QuietPeriod)
	assert.Equal(t, 5*time.Minute, cfg.Session.OTPPeriod)
	assert.Equal(t, "localhost:6379", cfg.Redis.RedisAddr())
	assert.Equal(t, 72*time.Hour, cfg.Session.SessionTTL())
	assert.Equal(t, 5, cfg.Session.OTPMaxAttempts)
	assert.Empty(t, cfg.Session.AdminAccounts)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.SMS.Enabled)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Tracing.OTLPEndpoint)
	assert.Empty(t, cfg.Sentry.DSN)
	assert.False(t, cfg.Scan.Archive.Enabled)
	assert.Equal(t, "scans/", cfg.Scan.Archive.Prefix)
}

func TestLoadCustomValues(t *testing.T) {
	t.Setenv("MAPS_TIMEOUT_SECONDS", "20")
	t.Setenv("NAV_QUIET_PERIOD", "2s")
	t.Setenv("NAV_MIN_REFETCH_METERS", "40.5")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("PREDICTION_CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("ADMIN_ACCOUNTS", " admin@philrice.gov.ph, ,+639171234567")
	t.Setenv("CORS_ORIGINS", "https://app.pal-ai.ph,https://admin.pal-ai.ph")

	cfg, err := Load("test-service")
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Maps.TimeoutSeconds)
	assert.Equal(t, 2*time.Second, cfg.Navigation.QuietPeriod)
	assert.InDelta(t, 40.5, cfg.Navigation.MinRefetchMeters, 1e-9)
	assert.True(t, cfg.NATS.Enabled)
	assert.InDelta(t, 0.75, cfg.Scan.ConfidenceThreshold, 1e-9)
	assert.Equal(t, []string{"admin@philrice.gov.ph", "+639171234567"}, cfg.Session.AdminAccounts)
	assert.Equal(t, []string{"https://app.pal-ai.ph", "https://admin.pal-ai.ph"}, cfg.Server.CORSOrigins)
}

func TestLoadValidation(t *testing.T) {
	t.Run("sms enabled without credentials", func(t *testing.T) {
		t.Setenv("SMS_ENABLED", "true")
		t.Setenv("TWILIO_ACCOUNT_SID", "AC123")

		_, err := Load("test-service")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TWILIO_AUTH_TOKEN")
	})

	t.Run("archive enabled without bucket", func(t *testing.T) {
		t.Setenv("SCAN_ARCHIVE_ENABLED", "true")

		_, err := Load("test-service")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SCAN_ARCHIVE_BUCKET")
	})

	t.Run("trace sample rate out of range", func(t *testing.T) {
		t.Setenv("OTEL_TRACE_SAMPLE_RATE", "2")

		_, err := Load("test-service")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OTEL_TRACE_SAMPLE_RATE")
	})

	t.Run("upstream timeout exceeds maximum", func(t *testing.T) {
		t.Setenv("WEATHER_TIMEOUT_SECONDS", "999")

		_, err := Load("test-service")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "WEATHER_TIMEOUT_SECONDS")
	})

	t.Run("confidence threshold out of range", func(t *testing.T) {
		t.Setenv("PREDICTION_CONFIDENCE_THRESHOLD", "1.5")

		_, err := Load("test-service")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PREDICTION_CONFIDENCE_THRESHOLD")
	})

	t.Run("default secret rejected in production", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")

		_, err := Load("test-service")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})

	t.Run("malformed breaker overrides", func(t *testing.T) {
		t.Setenv("CB_SERVICE_OVERRIDES", "{not json")

		_, err := Load("test-service")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CB_SERVICE_OVERRIDES")
	})
}

func TestSettingsForAppliesOverrides(t *testing.T) {
	cfg := CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		TimeoutSeconds:   30,
		IntervalSeconds:  60,
		ServiceOverrides: map[string]CircuitBreakerSettings{
			"google-directions": {FailureThreshold: 3, TimeoutSeconds: 10},
		},
	}

	overridden := cfg.SettingsFor("google-directions")
	assert.Equal(t, 3, overridden.FailureThreshold)
	assert.Equal(t, 10, overridden.TimeoutSeconds)
	assert.Equal(t, 60, overridden.IntervalSeconds)

	defaults := cfg.SettingsFor("weather")
	assert.Equal(t, 5, defaults.FailureThreshold)
	assert.Equal(t, 30, defaults.TimeoutSeconds)
}
