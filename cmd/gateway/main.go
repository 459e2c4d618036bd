package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pal-ai/gateway/internal/maps"
	"github.com/pal-ai/gateway/internal/navigation"
	"github.com/pal-ai/gateway/internal/notifications"
	"github.com/pal-ai/gateway/internal/scan"
	"github.com/pal-ai/gateway/internal/session"
	"github.com/pal-ai/gateway/internal/stores"
	"github.com/pal-ai/gateway/internal/weather"
	"github.com/pal-ai/gateway/pkg/cache"
	"github.com/pal-ai/gateway/pkg/common"
	"github.com/pal-ai/gateway/pkg/config"
	apperrors "github.com/pal-ai/gateway/pkg/errors"
	"github.com/pal-ai/gateway/pkg/health"
	"github.com/pal-ai/gateway/pkg/logger"
	"github.com/pal-ai/gateway/pkg/middleware"
	redisclient "github.com/pal-ai/gateway/pkg/redis"
	"github.com/pal-ai/gateway/pkg/resilience"
	"github.com/pal-ai/gateway/pkg/tracing"
	"github.com/pal-ai/gateway/pkg/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	serviceName = "pal-ai-gateway"
	version     = "1.0.0"

	cachePrefix               = "palai:"
	maxNavigationSessionsUser = 3
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment, cfg.Server.LogLevel); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting gateway", zap.String("version", version), zap.String("environment", cfg.Server.Environment))

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	shutdownTracing, err := tracing.Init(rootCtx, cfg.Tracing, serviceName, version, cfg.Server.Environment)
	if err != nil {
		log.Warn("Failed to initialize tracing, continuing without it", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	sentryEnabled, err := apperrors.InitSentry(cfg.Sentry, cfg.Server.Environment, version, serviceName)
	if err != nil {
		log.Warn("Failed to initialize Sentry, continuing without it", zap.Error(err))
	} else if sentryEnabled {
		log.Info("Sentry error tracking enabled")
		defer apperrors.Flush(2 * time.Second)
	}

	// Redis backs the route/weather caches and session state
	redis, err := redisclient.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	log.Info("Connected to Redis", zap.String("addr", cfg.Redis.RedisAddr()))

	cacheManager := cache.NewManager(redis, cachePrefix)
	breakerCfg := cfg.Resilience.CircuitBreaker

	checker := health.NewChecker(health.Config{Version: version, Timeout: 3 * time.Second, CacheTTL: 10 * time.Second})
	checker.AddProbe("redis", true, redis.Ping)

	// Directions
	if cfg.Maps.GoogleAPIKey == "" {
		log.Warn("GOOGLE_MAPS_API_KEY not set, routes will fall back to straight lines")
	}
	google := maps.NewGoogleDirectionsProvider(maps.ProviderConfig{
		APIKey:  cfg.Maps.GoogleAPIKey,
		BaseURL: cfg.Maps.BaseURL,
		Timeout: time.Duration(cfg.Maps.TimeoutSeconds) * time.Second,
	})
	mapsService, err := maps.NewService(maps.Config{
		CacheEnabled:      cfg.Maps.CacheTTLSeconds > 0,
		CacheTTL:          time.Duration(cfg.Maps.CacheTTLSeconds) * time.Second,
		AllowStraightLine: cfg.Maps.AllowStraightLine,
	}, cacheManager, breakerCfg, google)
	if err != nil {
		log.Fatal("Failed to initialize maps service", zap.Error(err))
	}
	checker.AddProbe("directions", false, google.HealthCheck)

	// Weather
	weatherBreaker := resilience.FromConfig(breakerCfg, "weather", nil)
	weatherService := weather.NewService(
		weather.NewClient(cfg.Weather.BaseURL, cfg.Weather.APIKey, cfg.Weather.Units, time.Duration(cfg.Weather.TimeoutSeconds)*time.Second),
		cacheManager,
		weatherBreaker,
		time.Duration(cfg.Weather.CacheTTLSeconds)*time.Second,
	)
	checker.AddCircuitBreaker("weather", weatherBreaker)

	// Disease scan
	predictionBreaker := resilience.FromConfig(breakerCfg, "prediction", nil)
	scanService := scan.NewService(
		scan.NewPredictionClient(cfg.Scan.PredictionURL, cfg.Scan.APIKey, time.Duration(cfg.Scan.TimeoutSeconds)*time.Second),
		predictionBreaker,
		cfg.Scan.ConfidenceThreshold,
	)
	checker.AddCircuitBreaker("prediction", predictionBreaker)
	if cfg.Scan.Archive.Enabled {
		archiver, err := scan.NewS3Archiver(rootCtx, cfg.Scan.Archive)
		if err != nil {
			log.Warn("Failed to initialize scan archive, images will not be kept", zap.Error(err))
		} else {
			scanService.WithArchiver(archiver)
			log.Info("Scan images will be archived", zap.String("bucket", cfg.Scan.Archive.Bucket))
		}
	}

	// Push notifications
	var pushClient notifications.PushClient = notifications.LogClient{}
	if cfg.Firebase.Enabled {
		fcm, err := notifications.NewFirebaseClient(rootCtx, cfg.Firebase.CredentialsPath)
		if err != nil {
			log.Warn("Failed to initialize Firebase client, push notifications will be logged", zap.Error(err))
		} else {
			fcmBreaker := resilience.FromConfig(breakerCfg, "fcm", nil)
			pushClient = notifications.NewResilientClient(fcm, fcmBreaker)
			checker.AddCircuitBreaker("fcm", fcmBreaker)
			log.Info("Firebase client initialized")
		}
	} else {
		log.Warn("FIREBASE_ENABLED not set, push notifications will be logged")
	}
	notificationService := notifications.NewService(pushClient, cfg.Firebase.BroadcastTopic)

	// Sessions
	var codeSender session.CodeSender = session.LogCodeSender{}
	if cfg.SMS.Enabled {
		codeSender = session.SMSCodeSender{
			SMS:    notifications.NewTwilioClient(cfg.SMS.TwilioAccountSID, cfg.SMS.TwilioAuthToken, cfg.SMS.FromNumber),
			Issuer: cfg.Session.OTPIssuer,
		}
		log.Info("OTP codes will be delivered by SMS")
	}
	sessionService := session.NewService(cfg.Session, redis, cachePrefix, notificationService, codeSender)

	// Store locator
	catalog, err := stores.LoadFile(cfg.Stores.CatalogPath)
	if err != nil {
		log.Fatal("Failed to load store catalog", zap.String("path", cfg.Stores.CatalogPath), zap.Error(err))
	}
	log.Info("Store catalog loaded", zap.Int("stores", catalog.Len()))

	// Live navigation
	var publisher navigation.Publisher = navigation.NopPublisher{}
	if cfg.NATS.Enabled {
		natsPublisher, err := navigation.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			log.Warn("Failed to connect to NATS, route updates will not be fanned out", zap.Error(err))
		} else {
			publisher = natsPublisher
			log.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
		}
	}
	navCfg := navigation.DefaultConfig()
	navCfg.QuietPeriod = cfg.Navigation.QuietPeriod
	navCfg.MinRefetchMeters = cfg.Navigation.MinRefetchMeters
	navCfg.FetchTimeout = time.Duration(cfg.Navigation.FetchTimeoutSeconds) * time.Second
	navManager := navigation.NewManager(navigation.NewNavigator(mapsService, publisher, navCfg), maxNavigationSessionsUser)
	navManager.EnableStreaming(websocket.NewHub())

	// Router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if sentryEnabled {
		router.Use(middleware.Sentry())
		router.Use(middleware.ErrorReporter())
	}
	router.Use(middleware.CorrelationID())
	router.Use(middleware.Tracing(serviceName))
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	router.GET("/healthz", common.HealthCheck(serviceName, version))
	router.GET("/readyz", common.ReadinessProbe(serviceName, map[string]func() error{
		"redis": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redis.Ping(ctx)
		},
	}))
	router.GET("/health/deep", checker.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	session.NewHandler(sessionService).RegisterRoutes(api)

	protected := api.Group("", session.RequireSession(sessionService))
	maps.NewHandler(mapsService).RegisterRoutes(protected)
	navigation.NewHandler(navManager).RegisterRoutes(protected)
	weather.NewHandler(weatherService).RegisterRoutes(protected)
	stores.NewHandler(catalog, mapsService).RegisterRoutes(protected)
	scan.NewHandler(scanService).RegisterRoutes(protected)
	notifications.NewHandler(notificationService).RegisterRoutes(protected)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	navManager.Shutdown()
	publisher.Close()

	if err := shutdownTracing(ctx); err != nil {
		log.Warn("Failed to flush traces", zap.Error(err))
	}
	cancelRoot()

	log.Info("Server stopped")
}
