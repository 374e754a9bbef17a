// Package naturalearth downloads and extracts the Natural Earth 110m
// admin-0 countries shapefile archive used for choropleth joins.
package naturalearth

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/energy-data-etl/internal/adapter/download"
	"github.com/couchcryptid/energy-data-etl/internal/observability"
)

const (
	// SubDir is the directory under data/raw holding the extracted shapefiles.
	SubDir = "natural_earth"
	// ArchiveFile is the downloaded zip's name inside SubDir.
	ArchiveFile = "world_countries.zip"
)

// Downloader fetches and extracts the Natural Earth countries archive.
type Downloader struct {
	url        string
	rawDir     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewDownloader creates a Natural Earth downloader writing into rawDir.
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
func (d *Downloader) Name() string { return "natural-earth" }

// Run downloads the archive and extracts it next to itself.
func (d *Downloader) Run(ctx context.Context) error {
	neDir := filepath.Join(d.rawDir, SubDir)
	archive := filepath.Join(neDir, ArchiveFile)
	if err := os.MkdirAll(neDir, 0o755); err != nil {
		return err
	}

	d.logger.Info("downloading Natural Earth dataset", "dest", archive)
	start := time.Now()
	n, err := download.FetchFile(ctx, d.httpClient, d.url, archive)
	if err != nil {
		return err
	}
	d.metrics.DownloadBytes.WithLabelValues(d.Name()).Add(float64(n))
	d.metrics.DownloadDuration.WithLabelValues(d.Name()).Observe(time.Since(start).Seconds())

	d.logger.Info("download complete, extracting", "archive", archive)
	if err := extractZip(archive, neDir); err != nil {
		return fmt.Errorf("extract %s: %w", archive, err)
	}
	d.logger.Info("Natural Earth data extracted", "dir", neDir)
	return nil
}

// extractZip unpacks src into destDir, rejecting entries that would escape
// the destination (zip-slip).
func extractZip(src, destDir string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractEntry(f, destDir); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(f *zip.File, destDir string) error {
	dest := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("archive entry %q escapes destination", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}
