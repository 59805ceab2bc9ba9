package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"pushbridge/internal/broker"
	"pushbridge/internal/config"
	"pushbridge/internal/constants"
	"pushbridge/internal/extension"
	"pushbridge/internal/ingest"
	"pushbridge/internal/logger"
	"pushbridge/internal/netservice"
	"pushbridge/internal/registration"
	"pushbridge/internal/statehub"
	"pushbridge/pkg/events"
	"pushbridge/pkg/health"
	"pushbridge/pkg/metrics"
	"pushbridge/pkg/middleware"
	"pushbridge/pkg/ratelimit"
)

type App struct {
	Config *config.Config
	Logger logger.Logger

	redisClient *redis.Client
	store       registration.Store
	hub         *statehub.Hub
	extension   *extension.Extension
	consumer    broker.Consumer
	server      *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("bridge-service")
	}
	return &App{
		Config: cfg,
		Logger: log,
	}
}

func (a *App) Initialize(ctx context.Context) error {
	metrics.Register()

	if err := a.initStore(ctx); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	a.hub = statehub.New()
	network := netservice.NewHTTPService(a.Logger)
	a.extension = extension.New(a.hub, network, a.store, a.Logger)
	a.extension.Register()

	a.consumer = broker.NewKafkaConsumer(a.Config.Broker.Kafka, a.Logger)
	a.consumer.SetServiceName("bridge-service")

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initStore(ctx context.Context) error {
	a.redisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", a.Config.Database.Redis.Host, a.Config.Database.Redis.Port),
		Password: a.Config.Database.Redis.Password,
		DB:       a.Config.Database.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.redisClient.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	a.store = registration.NewCircuitBreakerStore(
		registration.NewRedisStore(a.redisClient),
		a.Config.CircuitBreaker,
	)
	return nil
}

func (a *App) initHTTPServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RecoveryMiddleware(a.Logger))

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewRedisChecker(a.redisClient))

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ingestGroup := gin.IRouter(router)
	if a.Config.Ingest.RateLimit.Enabled {
		rlConfig := ratelimit.DefaultConfig()
		if a.Config.Ingest.RateLimit.RPS > 0 {
			rlConfig.RPS = a.Config.Ingest.RateLimit.RPS
		}
		if a.Config.Ingest.RateLimit.Burst > 0 {
			rlConfig.Burst = a.Config.Ingest.RateLimit.Burst
		}
		if a.Config.Ingest.RateLimit.CleanupInterval > 0 {
			rlConfig.CleanupInterval = time.Duration(a.Config.Ingest.RateLimit.CleanupInterval) * time.Second
		}
		if a.Config.Ingest.RateLimit.MaxAge > 0 {
			rlConfig.MaxAge = time.Duration(a.Config.Ingest.RateLimit.MaxAge) * time.Second
		}
		ingestGroup = router.Group("/", ratelimit.Middleware(rlConfig))
	}

	handler := ingest.NewHandler(a.extension, a.hub, a.Logger)
	handler.RegisterRoutes(ingestGroup)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds * time.Second,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		topic := a.Config.Broker.Kafka.InputTopic
		if topic == "" {
			topic = constants.DefaultInputTopic
		}
		err := a.consumer.Consume(gCtx, topic, a.handleEvent)
		if err != nil && err != context.Canceled {
			return fmt.Errorf("consumer error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.shutdown()
	})

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// handleEvent is the consumer-side delivery path: configuration events
// update shared state first, then everything flows into the extension.
func (a *App) handleEvent(ctx context.Context, e *events.Event) error {
	a.hub.Apply(e)
	return a.extension.Process(ctx, e)
}

func (a *App) shutdown() error {
	a.Logger.Info("Shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if err := a.consumer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("consumer close error: %w", err))
	}

	a.extension.Unregister()

	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close error: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.Logger.Info("Application exited successfully")
	return nil
}
