// @title           Sora Video Generation API
// @version         1.0.0
// @description     Creates image-to-video and text-to-video jobs on the OpenAI Videos API, tracks them to completion, and stores finished videos in Supabase Storage.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/CRMWizAI/sora2api/internal/config"
	"github.com/CRMWizAI/sora2api/internal/database"
	"github.com/CRMWizAI/sora2api/internal/events"
	"github.com/CRMWizAI/sora2api/internal/handlers"
	"github.com/CRMWizAI/sora2api/internal/lock"
	"github.com/CRMWizAI/sora2api/internal/logging"
	"github.com/CRMWizAI/sora2api/internal/observability"
	"github.com/CRMWizAI/sora2api/internal/redis"
	"github.com/CRMWizAI/sora2api/internal/server"
	"github.com/CRMWizAI/sora2api/internal/services"
	"github.com/CRMWizAI/sora2api/internal/sora"
	"github.com/CRMWizAI/sora2api/internal/supabase"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogPretty)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	shutdownTracing, err := observability.SetupOTel(ctx, cfg, version)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	checks := map[string]handlers.Pinger{}

	store, closeStore, err := openStore(ctx, cfg, logger, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		locker    lock.Locker      = lock.NewLocalLocker()
		publisher events.Publisher = events.NopPublisher{}
	)
	if cfg.RedisURL != "" {
		rdb, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()

		locker = lock.NewRedisLocker(rdb, "sora2api:poll:")
		publisher = events.NewRedisPublisher(rdb)
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		logger.Info().Msg("redis poll lock and event publishing enabled")
	} else {
		logger.Info().Msg("REDIS_URL not set, using in-process poll lock and no event publishing")
	}

	svc := services.NewGenerationService(
		sora.NewClient(cfg.OpenAIAPIBase, cfg.OpenAIAPIKey, cfg.SoraModel, cfg.ProviderTimeout, cfg.ProviderDownloadTimeout),
		sora.NewImageFetcher(cfg.ProviderTimeout, cfg.ReferenceMaxBytes),
		supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket),
		store,
		locker,
		publisher,
		services.Options{
			LockTTL:         cfg.PollLockTTL,
			MaxProcessing:   cfg.GenerationMaxProcessing,
			PromptMaxLength: cfg.PromptMaxLength,
		},
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(cfg, logger, svc, checks),
		ReadHeaderTimeout: 10 * time.Second,
		// A completing poll downloads and re-uploads the video inline.
		WriteTimeout: cfg.ProviderDownloadTimeout + time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("record_store", cfg.RecordStore).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger, checks map[string]handlers.Pinger) (services.GenerationStore, func(), error) {
	switch cfg.RecordStore {
	case "postgres":
		db, err := supabase.NewDatabaseClient(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.NewMigrator(db.DB(), logger).Run(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
		checks["database"] = db
		return db, func() { db.Close() }, nil

	case "supabase":
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			return nil, nil, err
		}
		return supabase.NewRestStore(client), func() {}, nil

	default:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate sqlite: %w", err)
		}
		store := database.NewGormStore(db)
		checks["database"] = store
		return store, func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}, nil
	}
}
