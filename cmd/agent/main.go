package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"road-monitor/internal/agent"
	"road-monitor/internal/classifier"
	"road-monitor/internal/config"
	"road-monitor/internal/domain"
	"road-monitor/internal/forward"
	"road-monitor/internal/pipeline"
)

// The agent replays recorded sensor data, classifies road state locally
// and forwards timestamp-sorted batches to the hub's ingest endpoint.
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

	c := classifier.New(classifier.Thresholds{
		MinDelta: cfg.ClassifierMinDelta,
		Bump:     cfg.ClassifierBumpThreshold,
		Pothole:  cfg.ClassifierPotholeThreshold,
	})
	sink := forward.NewClient(cfg.HubURL, cfg.AgentAPIKey)
	readings := make(chan domain.Reading, cfg.ReadingChanSize)
	batcher := pipeline.NewBatcher(readings, c, sink, cfg.BatchSize, cfg.BatchFlushMS, logger)

	source := agent.NewFileSource(
		cfg.AccelerometerCSV,
		cfg.GpsCSV,
		cfg.AgentUserID,
		time.Duration(cfg.AgentSampleDelayMS)*time.Millisecond,
		logger,
	)

	logger.Info("agent started",
		zap.Int64("user_id", cfg.AgentUserID),
		zap.String("hub_url", cfg.HubURL))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Drains readings until the channel closes, then flushes the tail.
		batcher.Run(context.Background())
	}()

	if err := source.Run(ctx, readings); err != nil {
		logger.Error("source failed", zap.Error(err))
	}
	close(readings)
	wg.Wait()

	logger.Info("agent stopped")
}
