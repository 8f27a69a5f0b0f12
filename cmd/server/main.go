package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	echoapi "github.com/guestwifi/guestgate/api/echo"
	"github.com/guestwifi/guestgate/cache"
	redcache "github.com/guestwifi/guestgate/cache/redis"
	"github.com/guestwifi/guestgate/config"
	"github.com/guestwifi/guestgate/internal/metrics"
	"github.com/guestwifi/guestgate/internal/omada"
	"github.com/guestwifi/guestgate/log"
	"github.com/guestwifi/guestgate/mongodb"
	"github.com/guestwifi/guestgate/services"
	"github.com/guestwifi/guestgate/tracing"
)

var (
	appLogger      log.Logger
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Warn().
			Str("configured_log_level", cfg.LogLevel).
			Str("fallback_log_level", logLevel.String()).
			Err(parseErr).
			Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)
	appLogger.Info(context.Background(), "Starting guestgate server...")
	appLogger.Info(context.Background(), "Configuration loaded successfully", map[string]interface{}{
		"http_port":     cfg.HTTPPort,
		"mongo_uri":     cfg.MongoURI,
		"mongo_db_name": cfg.MongoDBName,
		"omada_base":    cfg.OmadaBaseURL,
		"omada_site":    cfg.OmadaSite,
		"log_level":     cfg.LogLevel,
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(context.Background(), "Failed to initialize TracerProvider", err, nil)
	}
	tracerProvider = tp

	ctx := context.Background()
	if initErr := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); initErr != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", initErr, nil)
	}
	db := mongodb.GetDB()

	// Repositories
	grantRepo := mongodb.NewGrantRepository(db)
	voucherRepo := mongodb.NewVoucherRepository(db)
	eventRepo := mongodb.NewRentalEventRepository(db)
	integrationRepo := mongodb.NewIntegrationRepository(db)
	txRunner := mongodb.NewTxRunner(mongodb.GetClient(), cfg.MongoTxEnabled)

	// Controller status cache
	statusTTL := time.Duration(cfg.StatusCacheTTLSec) * time.Second
	var statusStore cache.StatusStore
	if cfg.RedisAddr != "" {
		redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		statusStore = redcache.NewStatusStore(redisClient, "guestgate", statusTTL)
		appLogger.Info(ctx, "Using Redis status cache", map[string]interface{}{"addr": cfg.RedisAddr})
	} else {
		statusStore = cache.NewMemoryStatusStore(statusTTL)
	}

	// Controller client and adapter
	omadaClient := omada.NewClient(omada.ClientConfig{
		BaseURL:      cfg.OmadaBaseURL,
		ControllerID: cfg.OmadaControllerID,
		Username:     cfg.OmadaUsername,
		Password:     cfg.OmadaPassword,
		VerifyTLS:    cfg.OmadaVerifyTLS,
		Timeout:      time.Duration(cfg.OmadaTimeoutSec) * time.Second,
	})
	adapter := omada.NewAdapter(omadaClient, cfg.OmadaSite)

	// Services
	grantService := services.NewGrantService(grantRepo)
	voucherService := services.NewVoucherService(voucherRepo, grantService, txRunner)
	bookingService := services.NewBookingService(eventRepo, integrationRepo, grantService)
	accessService := services.NewAccessService(grantService, voucherService, bookingService, adapter, nil, statusStore)

	retryQueue := services.NewRetryQueue(accessService.ExecuteRetry, services.RetryQueueConfig{
		BaseDelay:  time.Duration(cfg.RetryBaseDelaySec) * time.Second,
		MaxDelay:   time.Duration(cfg.RetryMaxDelaySec) * time.Second,
		MaxRetries: cfg.RetryMaxAttempts,
	})
	accessService.SetQueue(retryQueue)

	queueCtx, cancelQueue := context.WithCancel(ctx)
	retryQueue.Start(queueCtx)

	// Metrics
	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	portalAPI := echoapi.NewPortalAPI(accessService, grantService, voucherService)
	portalAPI.RegisterRoutes(e)

	go func() {
		appLogger.Info(context.Background(), fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(context.Background(), "Failed to start HTTP server", err, nil)
		}
	}()

	appLogger.Info(ctx, "Server components initialized. Waiting for interrupt signal...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(context.Background(), fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err, nil)
	}

	cancelQueue()
	retryQueue.Stop()

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err, nil)
		}
	}

	if err := statusStore.Close(); err != nil {
		appLogger.Error(shutdownCtx, "Status cache shutdown error", err, nil)
	}

	mongodb.CloseMongoDB(shutdownCtx)
	appLogger.Info(shutdownCtx, "Server shut down gracefully.")
}
