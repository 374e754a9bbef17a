// Package arcgis downloads the IMF renewable energy dataset from its ArcGIS
// Hub CSV export. This is the legacy source superseded by the Ember API but
// still used by the analysis notebooks for cross-checks.
package arcgis

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/couchcryptid/energy-data-etl/internal/adapter/download"
	"github.com/couchcryptid/energy-data-etl/internal/observability"
)

// OutputFile is the fixed name the analysis code expects under data/raw.
const OutputFile = "imf_renewable_energy.csv"

// Downloader fetches the IMF renewable energy CSV.
type Downloader struct {
	url        string
	rawDir     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewDownloader creates an IMF CSV downloader writing into rawDir.
func NewDownloader(url, rawDir string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Downloader {
	return &Downloader{
		url:        url,
		rawDir:     rawDir,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// Name identifies the dataset in logs, metrics, and job sequencing.
func (d *Downloader) Name() string { return "imf-renewable-energy" }

// Run downloads the CSV to its fixed path.
func (d *Downloader) Run(ctx context.Context) error {
	dest := filepath.Join(d.rawDir, OutputFile)
	d.logger.Info("downloading IMF energy data", "dest", dest)

	start := time.Now()
	n, err := download.FetchFile(ctx, d.httpClient, d.url, dest)
	if err != nil {
		return err
	}

	d.metrics.DownloadBytes.WithLabelValues(d.Name()).Add(float64(n))
	d.metrics.DownloadDuration.WithLabelValues(d.Name()).Observe(time.Since(start).Seconds())
	d.logger.Info("IMF energy data download complete", "bytes", n)
	return nil
}
