package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	accounthandler "github.com/agrosight/ndvi-vault/internal/api/handlers/account"
	authhandler "github.com/agrosight/ndvi-vault/internal/api/handlers/auth"
	imagehandler "github.com/agrosight/ndvi-vault/internal/api/handlers/image"
	"github.com/agrosight/ndvi-vault/internal/api/router"
	"github.com/agrosight/ndvi-vault/internal/api/server"
	"github.com/agrosight/ndvi-vault/internal/config"
	"github.com/agrosight/ndvi-vault/internal/events"
	"github.com/agrosight/ndvi-vault/internal/processor"
	accountrepo "github.com/agrosight/ndvi-vault/internal/repository/account"
	imagerepo "github.com/agrosight/ndvi-vault/internal/repository/image"
	accountsvc "github.com/agrosight/ndvi-vault/internal/service/account"
	imagesvc "github.com/agrosight/ndvi-vault/internal/service/image"
	"github.com/agrosight/ndvi-vault/internal/storage"
	"github.com/agrosight/ndvi-vault/internal/storage/file"
	"github.com/agrosight/ndvi-vault/internal/storage/object"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config")

	// Connect to PostgreSQL (master and slaves).
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	// Collect slave DSNs for replica connections.
	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Select the storage backend: the S3-compatible store when credentials
	// are configured, otherwise the documented local-filesystem fallback.
	var store storage.ObjectStore
	if cfg.Storage.AccessKey != "" && cfg.Storage.SecretKey != "" {
		store, err = object.NewStorage(
			ctx,
			cfg.Storage.Endpoint, cfg.Storage.Region,
			cfg.Storage.AccessKey, cfg.Storage.SecretKey,
			cfg.Storage.BucketName, cfg.Storage.UseSSL,
			cfg.Storage.PublicBaseURL,
		)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to object storage")
		}
	} else {
		zlog.Logger.Warn().
			Str("dir", cfg.Storage.LocalDir).
			Msg("object-store credentials missing, falling back to local storage")
		store = file.NewStorage(cfg.Storage.LocalDir, cfg.Storage.LocalBaseURL)
	}

	// Retry strategy for event publishing.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Optional ingestion event publisher; nil when no brokers are configured.
	publisher := events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, strategy)

	// Initialize repositories, the transform step, and the service layer.
	imageRepo := imagerepo.NewRepository(db)
	accountRepo := accountrepo.NewRepository(db)
	transform := processor.New(cfg.Limits.ThumbnailSize, cfg.Limits.OptimizeCap)
	imageService := imagesvc.NewService(
		store, transform, imageRepo, accountRepo, publisher,
		cfg.Limits.MaxUploadBytes, cfg.Limits.SignedURLTTL,
	)
	accountService := accountsvc.NewService(accountRepo, imageRepo, imageService)

	// HTTP handlers.
	authHandler := authhandler.NewHandler(accountService, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	imageHandler := imagehandler.NewHandler(imageService, cfg.Limits.MultipartMemory, cfg.Limits.MaxUploadBytes)
	accountHandler := accounthandler.NewHandler(accountService)

	// Start HTTP server.
	r := router.Setup(cfg.Auth.JWTSecret, authHandler, imageHandler, accountHandler)
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	zlog.Logger.Info().Str("addr", cfg.Server.HTTPPort).Msg("server started")

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Close master and slave databases.
	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}
	for i, slave := range db.Slaves {
		if err := slave.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}

	// Close the event publisher.
	if err := publisher.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close event publisher")
	}
}
