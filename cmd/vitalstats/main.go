// Package main is the entry point for the vitalstats dashboard service.
// It wires the backend gateway, the cache, the dashboard sessions and the
// invalidation pipeline, then serves the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"vitalstats/internal/api"
	"vitalstats/internal/banner"
	"vitalstats/internal/cache"
	memorycache "vitalstats/internal/cache/memory"
	postgrescache "vitalstats/internal/cache/postgres"
	rediscache "vitalstats/internal/cache/redis"
	"vitalstats/internal/config"
	"vitalstats/internal/dashboard"
	"vitalstats/internal/gateway"
	"vitalstats/internal/invalidation"
	"vitalstats/internal/loader"
	"vitalstats/internal/queue"
	kafkaqueue "vitalstats/internal/queue/kafka"
	memoryqueue "vitalstats/internal/queue/memory"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err, "path", *configPath)
		os.Exit(1)
	}

	logger := initLogger(&cfg.Logger)
	banner.Print(os.Stdout)

	logger.Info("configuration loaded",
		"path", *configPath,
		"storage_mode", cfg.Storage.Mode,
		"backend", cfg.Backend.BaseURL,
	)

	deps, cleanup, err := initDependencies(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := deps.processor.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("invalidation processor error", "error", err)
			cancel()
		}
	}()

	go deps.sessions.StartReaper(ctx, cfg.Dashboard.SessionTTL/2)

	go func() {
		if err := deps.server.Start(); err != nil {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	logger.Info("vitalstats started",
		"address", cfg.Server.Address(),
		"storage_mode", cfg.Storage.Mode,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := deps.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := deps.processor.Stop(); err != nil {
		logger.Error("processor shutdown error", "error", err)
	}

	logger.Info("vitalstats stopped")
}

// dependencies holds all initialized service dependencies.
type dependencies struct {
	server    *api.Server
	processor *invalidation.Processor
	sessions  *dashboard.Sessions
}

// initDependencies creates and wires all service dependencies based on config.
// Returns the dependencies and a cleanup function.
func initDependencies(cfg *config.Config, logger *slog.Logger) (*dependencies, func(), error) {
	var (
		store        cache.Store
		producer     queue.Producer
		consumer     queue.Consumer
		cleanupFuncs []func()
	)

	cleanup := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}

	if cfg.Storage.UseMemory() {
		logger.Info("initializing in-memory cache and queue")

		memStore := memorycache.NewStore(cfg.Cache.TTL)
		store = memStore
		cleanupFuncs = append(cleanupFuncs, func() { _ = memStore.Close() })

		memQueue := memoryqueue.NewQueue(1000, logger)
		producer = memQueue
		consumer = memQueue
		cleanupFuncs = append(cleanupFuncs, func() { _ = memQueue.Close() })
	} else {
		logger.Info("initializing storage backends", "cache_backend", cfg.Cache.Backend)

		switch cfg.Cache.Backend {
		case config.CacheBackendPostgres:
			ctx := context.Background()
			db, err := postgrescache.NewDB(ctx, &cfg.Postgres)
			if err != nil {
				return nil, nil, err
			}
			cleanupFuncs = append(cleanupFuncs, db.Close)

			if err := db.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, err
			}
			logger.Info("database migrations completed")
			store = postgrescache.NewStore(db, cfg.Cache.TTL)
		default:
			redisStore, err := rediscache.NewStore(&cfg.Redis, cfg.Cache.TTL)
			if err != nil {
				return nil, nil, err
			}
			store = redisStore
			cleanupFuncs = append(cleanupFuncs, func() { _ = redisStore.Close() })
		}

		kafkaProducer := kafkaqueue.NewProducer(&cfg.Kafka, logger)
		producer = kafkaProducer
		cleanupFuncs = append(cleanupFuncs, func() { _ = kafkaProducer.Close() })

		consumer = kafkaqueue.NewConsumer(&cfg.Kafka, logger)
	}

	client := gateway.NewClient(&cfg.Backend, logger)
	cached := loader.New(client, store, cfg.Dashboard.FanOutLimit, logger)
	sessions := dashboard.NewSessions(cached, cfg.Dashboard.DefaultYear, cfg.Dashboard.MaxSessions, cfg.Dashboard.SessionTTL, logger)

	publisher := invalidation.NewPublisher(producer, logger)
	processor := invalidation.NewProcessor(consumer, store, logger)

	server := api.NewServer(api.ServerDeps{
		Config:              &cfg.Server,
		Logger:              logger,
		ReferenceHandler:    api.NewReferenceHandler(cached, cfg.Dashboard.DefaultYear, logger),
		DashboardHandler:    api.NewDashboardHandler(sessions, logger),
		CartorioHandler:     api.NewCartorioHandler(client, logger),
		InvalidationHandler: api.NewInvalidationHandler(publisher, logger),
	})

	return &dependencies{
		server:    server,
		processor: processor,
		sessions:  sessions,
	}, cleanup, nil
}

// initLogger creates the application logger from configuration.
func initLogger(cfg *config.LoggerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		fmt.Fprintf(os.Stderr, "unknown log level %q, using info\n", s)
		return slog.LevelInfo
	}
	return level
}
