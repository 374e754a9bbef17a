package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/energy-data-etl/internal/domain"
	"github.com/couchcryptid/energy-data-etl/internal/observability"
)

// FetchFunc retrieves the raw rows for one Ember dataset. The fetch closure
// binds the API client, endpoint, and query filters so the job stays free of
// adapter imports.
type FetchFunc func(ctx context.Context) ([]domain.RawRow, error)

// EmberDataset binds a fetch to its metric and snapshot name.
type EmberDataset struct {
	Name   string // snapshot file stem, e.g. "electricity_generation_yearly"
	Metric domain.Metric
	Fetch  FetchFunc
}

// RecordPublisher forwards normalized records to downstream consumers.
type RecordPublisher interface {
	PublishBatch(ctx context.Context, records []domain.EnergyRecord) error
}

// EmberJob fetches the configured Ember datasets, normalizes the rows, and
// writes one JSON snapshot per dataset to the processed directory. When a
// publisher is configured the normalized batch is also pushed to it.
type EmberJob struct {
	datasets     []EmberDataset
	processedDir string
	publisher    RecordPublisher // nil disables publishing
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewEmberJob creates the Ember refresh job. Pass a nil publisher to
// disable Kafka publishing.
func NewEmberJob(
	datasets []EmberDataset,
	processedDir string,
	publisher RecordPublisher,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *EmberJob {
	return &EmberJob{
		datasets:     datasets,
		processedDir: processedDir,
		publisher:    publisher,
		logger:       logger,
		metrics:      metrics,
	}
}

// Name identifies the job in logs, metrics, and sequencing.
func (j *EmberJob) Name() string { return "ember-refresh" }

// Run processes every configured dataset. The job fails on the first
// dataset-level error; row-level normalization failures only skip the row.
func (j *EmberJob) Run(ctx context.Context) error {
	for _, ds := range j.datasets {
		if err := j.processDataset(ctx, ds); err != nil {
			return fmt.Errorf("dataset %s: %w", ds.Name, err)
		}
	}
	return nil
}

func (j *EmberJob) processDataset(ctx context.Context, ds EmberDataset) error {
	rows, err := ds.Fetch(ctx)
	if err != nil {
		return err
	}

	records := j.normalize(rows, ds)
	j.logger.Info("dataset normalized", "dataset", ds.Name, "rows", len(rows), "records", len(records))

	if len(records) == 0 {
		// Nothing to snapshot; an empty upstream response is not an error.
		return nil
	}

	if err := j.writeSnapshot(ds.Name, records); err != nil {
		return err
	}

	if j.publisher != nil {
		if err := j.publisher.PublishBatch(ctx, records); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		j.metrics.RecordsPublished.Add(float64(len(records)))
	}
	return nil
}

// normalize converts raw rows to records, skipping rows that fail
// validation. A malformed row must not poison the rest of the batch.
func (j *EmberJob) normalize(rows []domain.RawRow, ds EmberDataset) []domain.EnergyRecord {
	records := make([]domain.EnergyRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := domain.NormalizeRow(row, ds.Metric)
		if err != nil {
			j.logger.Warn("skipping row", "dataset", ds.Name, "error", err)
			j.metrics.TransformErrors.Inc()
			continue
		}
		records = append(records, rec)
	}
	j.metrics.RecordsFetched.Add(float64(len(records)))
	return records
}

// writeSnapshot persists the normalized records as indented JSON via temp
// file + rename.
func (j *EmberJob) writeSnapshot(name string, records []domain.EnergyRecord) error {
	if err := os.MkdirAll(j.processedDir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	dest := filepath.Join(j.processedDir, name+".json")
	tmp, err := os.CreateTemp(j.processedDir, ".snapshot-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
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
