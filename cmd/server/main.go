package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"road-monitor/internal/auth"
	"road-monitor/internal/config"
	"road-monitor/internal/ingest"
	"road-monitor/internal/store"
	"road-monitor/internal/subscription"
	"road-monitor/internal/transport/httpapi"
	"road-monitor/internal/transport/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewPostgresStore(ctx, cfg)
	if err != nil {
		logger.Fatal("postgres init failed", zap.Error(err))
	}
	defer db.Close()

	redisStore, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		logger.Fatal("redis init failed", zap.Error(err))
	}
	defer redisStore.Close()

	registry := subscription.NewRegistry()
	broadcaster := subscription.NewBroadcaster(registry, cfg.BroadcastSendTimeout, logger)
	service := ingest.NewService(db, broadcaster, redisStore, logger)

	var authMW *httpapi.AuthMiddleware
	if len(cfg.ValidAPIKeys) > 0 {
		authMW = httpapi.NewAuthMiddleware(auth.NewAuthenticator(cfg, redisStore))
	}

	wsHandler := ws.NewHandler(registry, logger)
	api := httpapi.NewServer(service, db, authMW, wsHandler, logger, db, redisStore)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		registry.CloseAll()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
