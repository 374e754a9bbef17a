// Command fetch performs a one-shot download of the static data sources:
// the IMF renewable energy CSV, the Natural Earth country boundaries
// archive, and the ISO country code table. Jobs run sequentially and the
// command exits non-zero on the first failure, leaving earlier downloads
// in place.
//
// Usage:
//
//	go run ./cmd/fetch [-data-dir data] [-only imf-renewable-energy,iso-codes]
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

	"github.com/couchcryptid/energy-data-etl/internal/adapter/arcgis"
	"github.com/couchcryptid/energy-data-etl/internal/adapter/isocodes"
	"github.com/couchcryptid/energy-data-etl/internal/adapter/naturalearth"
	"github.com/couchcryptid/energy-data-etl/internal/config"
	"github.com/couchcryptid/energy-data-etl/internal/observability"
	"github.com/couchcryptid/energy-data-etl/internal/paths"
	"github.com/couchcryptid/energy-data-etl/internal/pipeline"
)

func main() {
	dataDir := flag.String("data-dir", "", "override the data directory (defaults to DATA_DIR)")
	only := flag.String("only", "", "comma-separated job names to run (default: all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	layout := paths.NewLayout(cfg.DataDir)
	if err := layout.Ensure(); err != nil {
		logger.Error("failed to create data directories", "error", err)
		os.Exit(1)
	}

	jobs := []pipeline.Job{
		arcgis.NewDownloader(cfg.IMFDataURL, layout.Raw, cfg.DownloadTimeout, logger, metrics),
		naturalearth.NewDownloader(cfg.NaturalEarthURL, layout.Raw, cfg.DownloadTimeout, logger, metrics),
		isocodes.NewFetcher(cfg.ISOCodesURL, layout.Raw, cfg.DownloadTimeout, logger, metrics),
	}

	jobs, err = filterJobs(jobs, *only)
	if err != nil {
		logger.Error("invalid -only flag", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(jobs, logger, metrics)
	if err := p.RunOnce(ctx); err != nil {
		logger.Error("fetch failed", "error", err)
		os.Exit(1)
	}
	logger.Info("all downloads complete", "dir", layout.Raw)
}

// filterJobs keeps only the named jobs, preserving their order. An empty
// selection keeps everything.
func filterJobs(jobs []pipeline.Job, only string) ([]pipeline.Job, error) {
	if only == "" {
		return jobs, nil
	}

	wanted := map[string]bool{}
	for _, name := range strings.Split(only, ",") {
		wanted[strings.TrimSpace(name)] = false
	}

	var selected []pipeline.Job
	for _, job := range jobs {
		if _, ok := wanted[job.Name()]; ok {
			wanted[job.Name()] = true
			selected = append(selected, job)
		}
	}

	for name, found := range wanted {
		if !found {
			return nil, fmt.Errorf("unknown job %q", name)
		}
	}
	return selected, nil
}
