package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	emberadapter "github.com/couchcryptid/energy-data-etl/internal/adapter/ember"
	httpadapter "github.com/couchcryptid/energy-data-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/energy-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/energy-data-etl/internal/config"
	"github.com/couchcryptid/energy-data-etl/internal/domain"
	"github.com/couchcryptid/energy-data-etl/internal/observability"
	"github.com/couchcryptid/energy-data-etl/internal/paths"
	"github.com/couchcryptid/energy-data-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	layout := paths.NewLayout(cfg.DataDir)
	if err := layout.Ensure(); err != nil {
		logger.Error("failed to create data directories", "error", err)
		os.Exit(1)
	}

	client := emberadapter.NewClient(cfg.EmberAPIKey, cfg.EmberBaseURL, cfg.EmberTimeout, logger, metrics)
	cached := emberadapter.NewCachedClient(client, layout.Raw, cfg.CacheTTL, logger, metrics)

	// Kafka publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.RecordPublisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	emberJob := pipeline.NewEmberJob(emberDatasets(cached), layout.Processed, publisher, logger, metrics)
	p := pipeline.New([]pipeline.Job{emberJob}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx, cfg.RefreshInterval); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// emberDatasets binds the refreshed datasets to the cached API client. The
// full unfiltered series are fetched so downstream consumers can slice as
// they please.
func emberDatasets(fetcher emberadapter.Fetcher) []pipeline.EmberDataset {
	var q emberadapter.Query
	return []pipeline.EmberDataset{
		{
			Name:   "electricity_generation_yearly",
			Metric: domain.MetricGeneration,
			Fetch: func(ctx context.Context) ([]domain.RawRow, error) {
				return fetcher.GenerationYearly(ctx, q)
			},
		},
		{
			Name:   "electricity_generation_monthly",
			Metric: domain.MetricGeneration,
			Fetch: func(ctx context.Context) ([]domain.RawRow, error) {
				return fetcher.GenerationMonthly(ctx, q)
			},
		},
		{
			Name:   "installed_capacity_monthly",
			Metric: domain.MetricCapacity,
			Fetch: func(ctx context.Context) ([]domain.RawRow, error) {
				return fetcher.CapacityMonthly(ctx, q)
			},
		},
	}
}
