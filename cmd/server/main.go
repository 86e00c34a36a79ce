package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anoa.com/ulike/internal/bootstrap"
	"anoa.com/ulike/internal/config"
	"anoa.com/ulike/internal/server"
	"anoa.com/ulike/pkg/database"
	"anoa.com/ulike/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	if err := run(cfg, zl); err != nil {
		zl.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		return err
	}
	if err := bootstrap.Migrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	redisClient, err := connectRedis(cfg.RedisURL, zl)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(cfg, db, redisClient, zl)
	if err := bootstrap.Seed(ctx, db, srv.Auth(), cfg.AppEnv == "development", zl); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	// The reconciler drains a Redis set, so it only runs with Redis.
	if redisClient != nil {
		if err := srv.StartWorkers(ctx); err != nil {
			return err
		}
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("HTTP server listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.AppEnv))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	zl.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Warn("HTTP shutdown did not complete", zap.Error(err))
	}

	// Let listeners finish with the last reactions before the pools close.
	srv.Close()
	return nil
}

// connectRedis returns nil when no URL is configured; features that need
// Redis then degrade instead of failing.
func connectRedis(url string, zl *zap.Logger) (*redis.Client, error) {
	if url == "" {
		zl.Warn("REDIS_URL not set, running without cache, rate limits and live updates")
		return nil, nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
