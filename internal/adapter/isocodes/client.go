// Package isocodes scrapes the ISO 3166 country-code table used to join the
// energy datasets on alpha-3 codes.
package isocodes

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/energy-data-etl/internal/observability"
)

const (
	// OutputFile is the fixed name the analysis code expects under data/raw.
	OutputFile = "iso_country_codes.csv"

	// alpha3Column must be present and unique for the scrape to be accepted.
	alpha3Column = "Alpha-3 code"
)

// Fetcher scrapes the country-code table and persists it as CSV.
type Fetcher struct {
	url        string
	rawDir     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewFetcher creates an ISO code fetcher writing into rawDir.
func NewFetcher(url, rawDir string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{
		url:        url,
		rawDir:     rawDir,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// Name identifies the dataset in logs, metrics, and job sequencing.
func (f *Fetcher) Name() string { return "iso-codes" }

// Run fetches the page, validates the scraped table, and writes the CSV.
func (f *Fetcher) Run(ctx context.Context) error {
	f.logger.Info("fetching ISO codes", "url", f.url)
	start := time.Now()

	header, rows, err := f.scrape(ctx)
	if err != nil {
		return err
	}

	if err := validateTable(header, rows); err != nil {
		return fmt.Errorf("invalid ISO codes dataset: %w", err)
	}

	dest := filepath.Join(f.rawDir, OutputFile)
	if err := writeCSV(dest, header, rows); err != nil {
		return err
	}

	f.metrics.DownloadDuration.WithLabelValues(f.Name()).Observe(time.Since(start).Seconds())
	f.logger.Info("ISO codes saved", "dest", dest, "countries", len(rows))
	return nil
}

func (f *Fetcher) scrape(ctx context.Context) ([]string, [][]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch ISO codes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, nil, fmt.Errorf("fetch ISO codes: status %d: %s", resp.StatusCode, snippet)
	}

	return parseFirstTable(resp.Body)
}

// validateTable enforces the shape the joins depend on: a non-empty table
// with an alpha-3 column whose values are unique.
func validateTable(header []string, rows [][]string) error {
	if len(rows) == 0 {
		return fmt.Errorf("table is empty")
	}

	col := -1
	for i, h := range header {
		if h == alpha3Column {
			col = i
			break
		}
	}
	if col < 0 {
		return fmt.Errorf("expected column %q not found", alpha3Column)
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if col >= len(row) {
			return fmt.Errorf("row has no %q cell", alpha3Column)
		}
		code := row[col]
		if seen[code] {
			return fmt.Errorf("duplicate alpha-3 code %q", code)
		}
		seen[code] = true
	}
	return nil
}

func writeCSV(dest string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".isocodes-*")
	if err != nil {
		return err
	}

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
