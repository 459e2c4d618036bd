package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// MaxUpstreamTimeoutSeconds caps every outbound API timeout.
	MaxUpstreamTimeoutSeconds = 120
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	NATS       NATSConfig
	Firebase   FirebaseConfig
	SMS        SMSConfig
	Maps       MapsConfig
	Weather    WeatherConfig
	Scan       ScanConfig
	Session    SessionConfig
	Navigation NavigationConfig
	Stores     StoresConfig
	Resilience ResilienceConfig
	Tracing    TracingConfig
	Sentry     SentryConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	LogLevel     string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  []string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NATSConfig holds the route update fan-out settings
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Enabled       bool
}

// FirebaseConfig holds Firebase configuration
type FirebaseConfig struct {
	CredentialsPath string
	BroadcastTopic  string
	Enabled         bool
}

// SMSConfig holds Twilio credentials for texting OTP codes
type SMSConfig struct {
	TwilioAccountSID string
	TwilioAuthToken  string
	FromNumber       string
	Enabled          bool
}

// TracingConfig holds OpenTelemetry exporter settings
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	// SampleRate of 0 picks a default for the environment.
	SampleRate float64
}

// SentryConfig holds error tracking settings. An empty DSN disables Sentry.
type SentryConfig struct {
	DSN              string
	TracesSampleRate float64
}

// MapsConfig holds directions provider configuration
type MapsConfig struct {
	GoogleAPIKey      string
	BaseURL           string
	TimeoutSeconds    int
	CacheTTLSeconds   int
	AllowStraightLine bool
}

// WeatherConfig holds weather API configuration
type WeatherConfig struct {
	APIKey          string
	BaseURL         string
	Units           string
	TimeoutSeconds  int
	CacheTTLSeconds int
}

// ScanConfig holds AI prediction service configuration
type ScanConfig struct {
	PredictionURL       string
	APIKey              string
	TimeoutSeconds      int
	ConfidenceThreshold float64
	Archive             ArchiveConfig
}

// ArchiveConfig holds the S3 bucket that keeps scanned images for retraining.
// Empty credentials fall back to the default AWS chain.
type ArchiveConfig struct {
	Enabled         bool
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// SessionConfig holds session token and OTP configuration
type SessionConfig struct {
	JWTSecret         string
	TTLHours          int
	OTPIssuer         string
	OTPPeriod         time.Duration
	OTPResendCooldown time.Duration
	OTPMaxAttempts    int
	VerifiedTTL       time.Duration
	AdminAccounts     []string
}

// NavigationConfig tunes live route recomputation
type NavigationConfig struct {
	QuietPeriod         time.Duration
	MinRefetchMeters    float64
	FetchTimeoutSeconds int
}

// StoresConfig points at the store catalog
type StoresConfig struct {
	CatalogPath string
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures default and per-service breaker tuning
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
	ServiceOverrides map[string]CircuitBreakerSettings
}

// CircuitBreakerSettings overrides defaults for a specific upstream service
type CircuitBreakerSettings struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	IntervalSeconds  int `json:"interval_seconds"`
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			LogLevel:     getEnv("LOG_LEVEL", ""),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 30),
			CORSOrigins:  getEnvAsList("CORS_ORIGINS", "http://localhost:3000"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", "nats://localhost:4222"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "palai.navigation"),
			Enabled:       getEnvAsBool("NATS_ENABLED", false),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			BroadcastTopic:  getEnv("FIREBASE_BROADCAST_TOPIC", "palai-announcements"),
			Enabled:         getEnvAsBool("FIREBASE_ENABLED", false),
		},
		SMS: SMSConfig{
			TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber:       getEnv("TWILIO_FROM_NUMBER", ""),
			Enabled:          getEnvAsBool("SMS_ENABLED", false),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0),
		},
		Sentry: SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			TracesSampleRate: getEnvAsFloat("SENTRY_TRACES_SAMPLE_RATE", 0.1),
		},
		Maps: MapsConfig{
			GoogleAPIKey:      getEnv("GOOGLE_MAPS_API_KEY", ""),
			BaseURL:           getEnv("GOOGLE_MAPS_BASE_URL", ""),
			TimeoutSeconds:    getEnvAsInt("MAPS_TIMEOUT_SECONDS", 15),
			CacheTTLSeconds:   getEnvAsInt("MAPS_CACHE_TTL_SECONDS", 300),
			AllowStraightLine: getEnvAsBool("MAPS_ALLOW_STRAIGHT_LINE", true),
		},
		Weather: WeatherConfig{
			APIKey:          getEnv("WEATHER_API_KEY", ""),
			BaseURL:         getEnv("WEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
			Units:           getEnv("WEATHER_UNITS", "metric"),
			TimeoutSeconds:  getEnvAsInt("WEATHER_TIMEOUT_SECONDS", 10),
			CacheTTLSeconds: getEnvAsInt("WEATHER_CACHE_TTL_SECONDS", 600),
		},
		Scan: ScanConfig{
			PredictionURL:       getEnv("PREDICTION_URL", "http://localhost:5000"),
			APIKey:              getEnv("PREDICTION_API_KEY", ""),
			TimeoutSeconds:      getEnvAsInt("PREDICTION_TIMEOUT_SECONDS", 30),
			ConfidenceThreshold: getEnvAsFloat("PREDICTION_CONFIDENCE_THRESHOLD", 0.6),
			Archive: ArchiveConfig{
				Enabled:         getEnvAsBool("SCAN_ARCHIVE_ENABLED", false),
				Bucket:          getEnv("SCAN_ARCHIVE_BUCKET", ""),
				Prefix:          getEnv("SCAN_ARCHIVE_PREFIX", "scans/"),
				Region:          getEnv("AWS_REGION", "ap-southeast-1"),
				Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
				AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			},
		},
		Session: SessionConfig{
			JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
			TTLHours:          getEnvAsInt("SESSION_TTL_HOURS", 72),
			OTPIssuer:         getEnv("OTP_ISSUER", "PAL-AI"),
			OTPPeriod:         getEnvAsDuration("OTP_PERIOD", 5*time.Minute),
			OTPResendCooldown: getEnvAsDuration("OTP_RESEND_COOLDOWN", 60*time.Second),
			OTPMaxAttempts:    getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
			VerifiedTTL:       getEnvAsDuration("OTP_VERIFIED_TTL", 10*time.Minute),
			AdminAccounts:     getEnvAsList("ADMIN_ACCOUNTS", ""),
		},
		Navigation: NavigationConfig{
			QuietPeriod:         getEnvAsDuration("NAV_QUIET_PERIOD", 750*time.Millisecond),
			MinRefetchMeters:    getEnvAsFloat("NAV_MIN_REFETCH_METERS", 15),
			FetchTimeoutSeconds: getEnvAsInt("NAV_FETCH_TIMEOUT_SECONDS", 15),
		},
		Stores: StoresConfig{
			CatalogPath: getEnv("STORES_CATALOG_PATH", "stores.json"),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
	}

	if breakerOverrides := getEnv("CB_SERVICE_OVERRIDES", ""); breakerOverrides != "" {
		var serviceConfig map[string]CircuitBreakerSettings
		if err := json.Unmarshal([]byte(breakerOverrides), &serviceConfig); err != nil {
			return nil, fmt.Errorf("invalid CB_SERVICE_OVERRIDES value: %w", err)
		}
		cfg.Resilience.CircuitBreaker.ServiceOverrides = serviceConfig
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	timeouts := map[string]int{
		"MAPS_TIMEOUT_SECONDS":       c.Maps.TimeoutSeconds,
		"WEATHER_TIMEOUT_SECONDS":    c.Weather.TimeoutSeconds,
		"PREDICTION_TIMEOUT_SECONDS": c.Scan.TimeoutSeconds,
		"NAV_FETCH_TIMEOUT_SECONDS":  c.Navigation.FetchTimeoutSeconds,
	}
	for key, value := range timeouts {
		if value <= 0 || value > MaxUpstreamTimeoutSeconds {
			return fmt.Errorf("%s must be between 1 and %d seconds, got %d", key, MaxUpstreamTimeoutSeconds, value)
		}
	}

	if c.Scan.ConfidenceThreshold < 0 || c.Scan.ConfidenceThreshold > 1 {
		return fmt.Errorf("PREDICTION_CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.Scan.ConfidenceThreshold)
	}

	if c.Scan.Archive.Enabled && c.Scan.Archive.Bucket == "" {
		return fmt.Errorf("SCAN_ARCHIVE_ENABLED requires SCAN_ARCHIVE_BUCKET")
	}

	if c.SMS.Enabled && (c.SMS.TwilioAccountSID == "" || c.SMS.TwilioAuthToken == "" || c.SMS.FromNumber == "") {
		return fmt.Errorf("SMS_ENABLED requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("OTEL_TRACE_SAMPLE_RATE must be within [0,1], got %v", c.Tracing.SampleRate)
	}

	if c.Server.Environment == "production" && c.Session.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}

	return nil
}

// SettingsFor returns effective breaker settings for a specific upstream service name
func (c CircuitBreakerConfig) SettingsFor(service string) CircuitBreakerSettings {
	settings := CircuitBreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
		IntervalSeconds:  c.IntervalSeconds,
	}

	if override, ok := c.ServiceOverrides[service]; ok {
		if override.FailureThreshold > 0 {
			settings.FailureThreshold = override.FailureThreshold
		}
		if override.SuccessThreshold > 0 {
			settings.SuccessThreshold = override.SuccessThreshold
		}
		if override.TimeoutSeconds > 0 {
			settings.TimeoutSeconds = override.TimeoutSeconds
		}
		if override.IntervalSeconds > 0 {
			settings.IntervalSeconds = override.IntervalSeconds
		}
	}

	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 30
	}
	if settings.IntervalSeconds <= 0 {
		settings.IntervalSeconds = 60
	}

	return settings
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// SessionTTL returns the session lifetime
func (c SessionConfig) SessionTTL() time.Duration {
	if c.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.TTLHours) * time.Hour
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key, defaultValue string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
