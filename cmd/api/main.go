package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/identity-service/internal/api/http"
	"github.com/spec-kit/identity-service/internal/api/http/handlers"
	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/cache"
	"github.com/spec-kit/identity-service/internal/config"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/observability"
	"github.com/spec-kit/identity-service/internal/persistence"
	"github.com/spec-kit/identity-service/internal/repository"
	"github.com/spec-kit/identity-service/internal/service"
	"github.com/spec-kit/identity-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisConn := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redisConn.Close()

	healthDeps := map[string]handlers.Pinger{
		"postgres": pg,
		"redis":    redisConn,
	}

	var publisher events.Publisher
	switch cfg.Broker.Driver {
	case config.BrokerDriverMemory:
		logger.Warn("using in-memory event dispatcher; events stay in process")
		dispatcher := events.NewInMemoryDispatcher(logger)
		worker.StartEventLogWorker(dispatcher, logger)
		publisher = dispatcher
	default:
		kafkaPublisher, err := events.Connect(ctx, cfg.Broker, logger)
		if err != nil {
			logger.Fatal("failed to connect broker", zap.Error(err))
		}
		healthDeps["broker"] = kafkaPublisher
		publisher = kafkaPublisher
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to flush events", zap.Error(err))
		}
	}()

	pool := pg.PoolHandle()
	identityRepo := repository.NewIdentityRepository(pool)
	resourceRepo := repository.NewResourceRepository(pool)
	redisCache := cache.NewRedisCache(redisConn.Client)

	tokens := auth.NewTokenManager(auth.TokenConfig{
		Secret:    cfg.Auth.JWTSecret,
		Issuer:    cfg.Auth.JWTIssuer,
		Audience:  cfg.Auth.JWTAudience,
		TTL:       time.Duration(cfg.Auth.AccessTokenTTL) * time.Minute,
		ClockSkew: cfg.Auth.ClockSkew(),
	})

	credentials := service.NewCredentialService(service.CredentialDependencies{
		Identities: identityRepo,
		Cache:      redisCache,
		Hasher:     auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens:     tokens,
		Logger:     logger,
		Metrics:    metrics,
		CacheTTL:   cfg.Cache.IdentityTTL,
	})
	resources := service.NewResourceService(service.ResourceDependencies{
		Resources: resourceRepo,
		Cache:     redisCache,
		Publisher: publisher,
		Logger:    logger,
		Metrics:   metrics,
		CacheTTL:  cfg.Cache.ResourceTTL,
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		UnescapePath:          true,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:               logger,
		Metrics:              metrics,
		Timeout:              cfg.App.RequestTimeout(),
		RateLimitPerMinute:   cfg.RateLimit.PerMinute,
		ExposeInternalErrors: cfg.App.IsDevelopment(),
	})

	validator := handlers.NewValidator()
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthDeps),
		Auth:           handlers.NewAuthHandler(credentials, validator),
		Resources:      handlers.NewResourcesHandler(resources, validator),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Error("fiber listen", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
}
