// cmd/search-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"restaurant-finder/internal/common/aws"
	"restaurant-finder/internal/common/config"
	"restaurant-finder/internal/common/database"
	"restaurant-finder/internal/common/logger"
	"restaurant-finder/internal/discovery"
	"restaurant-finder/internal/engine"
	"restaurant-finder/internal/matching"
	"restaurant-finder/internal/models"
	"restaurant-finder/internal/providers"
	"restaurant-finder/internal/repository"
	"restaurant-finder/internal/resilience"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting search service...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Resilience layer ---
	breakerStore := resilience.NewRedisStateStore(redis.Client, 24*time.Hour)
	breakers := resilience.NewRegistry(cfg.Failover, breakerStore, log)

	// --- Providers ---
	providerRegistry := providers.NewProviderRegistry().
		Register(providers.NewGoogleProvider(cfg.Providers.Google, log)).
		Register(providers.NewTripAdvisorProvider(cfg.Providers.TripAdvisor, log)).
		Register(providers.NewOverpassProvider(cfg.Providers.Overpass, log))

	selector := discovery.NewProviderSelector(providerRegistry, breakers, discovery.TagRules{
		HiddenTags:   cfg.Tags.HiddenTags,
		PriorityTags: cfg.Tags.PriorityTags,
		MaxTags:      cfg.Tags.MaxTags,
	}, log)

	// --- Repositories ---
	searchRepo := repository.NewPostgresSearchRepository(pg.DB)
	candidateRepo := repository.NewPostgresCandidateRepository(pg.DB)
	restaurantRepo := repository.NewPostgresRestaurantRepository(pg.DB)
	matchingRepo := repository.NewPostgresMatchingRepository(pg.DB)

	// --- Matching pipeline ---
	matchers := make([]matching.Matcher, 0, len(models.SourcePriority))
	for _, provider := range providerRegistry.All() {
		quota := cfg.Sources[string(provider.Source())].MaxAttemptsPerMonth
		matchers = append(matchers, matching.NewSourceMatcher(
			provider,
			breakers.Get(provider.Name()),
			restaurantRepo,
			matchingRepo,
			quota,
			log,
		))
	}
	pipeline := matching.NewPipeline(matchers, restaurantRepo, matchingRepo, cfg.Matching.FreshnessWindow(), log)

	// --- Engine ---
	engineOpts := []engine.EngineOption{}
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		notifier := aws.NewSearchResultNotifier(snsClient, cfg.Notifications.SNS.TopicARN, log)
		engineOpts = append(engineOpts, engine.WithNotifier(notifier))
		zapLog.Info("SNS result notifier enabled")
	}

	searchEngine := engine.NewSearchEngine(
		searchRepo,
		candidateRepo,
		selector,
		pipeline,
		engine.NewPreferenceValidator(),
		cfg.DistanceBands,
		cfg.Discovery,
		log,
		engineOpts...,
	)

	// --- HTTP server ---
	api := newAPIServer(searchRepo, candidateRepo, searchEngine, log)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.routes(),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Search service stopped gracefully")
}
