package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/futsal-booking-flow/internal/app"
	"github.com/nekogravitycat/futsal-booking-flow/internal/config"
	"github.com/nekogravitycat/futsal-booking-flow/internal/db"
	"github.com/nekogravitycat/futsal-booking-flow/internal/logger"
	"github.com/nekogravitycat/futsal-booking-flow/internal/telemetry"
)

const serviceName = "futsal-booking-flow"

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.IsProduction)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync()
	zap.ReplaceGlobals(zl)

	env := "dev"
	if cfg.IsProduction {
		env = config.PROD_STRING
	}
	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg.OTelEndpoint, env)
	if err != nil {
		zl.Fatal("failed to init tracer", zap.Error(err))
	}

	containerCfg := app.Config{
		IsProduction:     cfg.IsProduction,
		ProdOrigins:      cfg.ProdOrigins,
		Logger:           zl,
		Location:         cfg.Location,
		DraftTTL:         cfg.DraftTTL,
		BackendBaseURL:   cfg.BackendBaseURL,
		BackendTimeout:   cfg.BackendTimeout,
		JWTSecret:        cfg.JWTSecret,
		ReleaseWorkers:   cfg.ReleaseWorkers,
		ReleaseQueueSize: cfg.ReleaseQueueSize,
		RateLimitRPS:     cfg.RateLimitRPS,
		RateLimitBurst:   cfg.RateLimitBurst,
	}

	// Connect the draft store
	switch cfg.DraftStore {
	case config.DraftStoreRedis:
		rdb, err := db.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			zl.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		containerCfg.Redis = rdb
	default:
		pool, err := db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			zl.Fatal("failed to connect to db", zap.Error(err))
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			zl.Fatal("failed to migrate db", zap.Error(err))
		}
		containerCfg.DBPool = pool
	}
	zl.Info("draft store ready", zap.String("store", cfg.DraftStore))

	container := app.NewContainer(containerCfg)
	go container.RunJanitor(ctx)

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in separate goroutine
	go func() {
		zl.Info("server running", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	zl.Info("shutdown signal received")

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server first so that no new releases are queued
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Warn("server forced to shutdown", zap.Error(err))
	}
	container.Close(shutdownCtx)
	if err := shutdownTracer(shutdownCtx); err != nil {
		zl.Warn("tracer shutdown failed", zap.Error(err))
	}

	zl.Info("server exited gracefully")
}
