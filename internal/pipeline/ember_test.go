package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/energy-data-etl/internal/domain"
	"github.com/couchcryptid/energy-data-etl/internal/observability"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixtureRows(t *testing.T) []domain.RawRow {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "generation_yearly_rows.json"))
	require.NoError(t, err)

	var rows []domain.RawRow
	require.NoError(t, json.Unmarshal(data, &rows))
	require.NotEmpty(t, rows)
	return rows
}

// capturingPublisher records every batch it receives.
type capturingPublisher struct {
	batches [][]domain.EnergyRecord
	err     error
}

func (p *capturingPublisher) PublishBatch(_ context.Context, records []domain.EnergyRecord) error {
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, records)
	return nil
}

func staticFetch(rows []domain.RawRow) FetchFunc {
	return func(_ context.Context) ([]domain.RawRow, error) {
		return rows, nil
	}
}

func TestEmberJob_Run_WritesSnapshotAndPublishes(t *testing.T) {
	fetchedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fetchedAt))
	defer domain.SetClock(clockwork.NewRealClock())

	rows := loadFixtureRows(t)
	processedDir := t.TempDir()
	pub := &capturingPublisher{}

	job := NewEmberJob([]EmberDataset{{
		Name:   "electricity_generation_yearly",
		Metric: domain.MetricGeneration,
		Fetch:  staticFetch(rows),
	}}, processedDir, pub, discardLogger(), observability.NewMetricsForTesting())

	require.NoError(t, job.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(processedDir, "electricity_generation_yearly.json"))
	require.NoError(t, err)

	var records []domain.EnergyRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, len(rows))

	first := records[0]
	assert.Equal(t, "Brazil", first.Entity)
	assert.Equal(t, "BRA", first.EntityCode)
	assert.Equal(t, "Hydro", first.Series)
	assert.Equal(t, domain.ResolutionYearly, first.Resolution)
	assert.Equal(t, 2021, first.Year)
	assert.InDelta(t, 362.8, first.Value, 0.001)
	assert.Equal(t, "twh", first.Unit)
	assert.Equal(t, "ember", first.Source)
	assert.True(t, first.FetchedAt.Equal(fetchedAt))
	assert.Regexp(t, `^hydro-[0-9a-f]{16}$`, first.ID)

	// The World aggregate row survives normalization despite its non-ISO code.
	last := records[len(records)-1]
	assert.True(t, last.IsAggregateEntity)
	assert.Equal(t, "Total Generation", last.Series)

	// The published batch matches what was snapshotted.
	require.Len(t, pub.batches, 1)
	if diff := cmp.Diff(records, pub.batches[0]); diff != "" {
		t.Errorf("published batch differs from snapshot (-snapshot +published):\n%s", diff)
	}
}

func TestEmberJob_Run_SkipsMalformedRows(t *testing.T) {
	twh := 12.5
	rows := []domain.RawRow{
		{Entity: "Brazil", EntityCode: "BRA", Date: "2022", Series: "Hydro", GenerationTWh: &twh},
		{Entity: "Nowhere", EntityCode: "NOWHERE", Date: "2022", Series: "Hydro", GenerationTWh: &twh},
		{Entity: "Germany", EntityCode: "DEU", Date: "2022", Series: "Wind"}, // no value column
	}

	metrics := observability.NewMetricsForTesting()
	processedDir := t.TempDir()
	job := NewEmberJob([]EmberDataset{{
		Name:   "electricity_generation_yearly",
		Metric: domain.MetricGeneration,
		Fetch:  staticFetch(rows),
	}}, processedDir, nil, discardLogger(), metrics)

	require.NoError(t, job.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(processedDir, "electricity_generation_yearly.json"))
	require.NoError(t, err)

	var records []domain.EnergyRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "BRA", records[0].EntityCode)
}

func TestEmberJob_Run_EmptyResponseWritesNothing(t *testing.T) {
	processedDir := t.TempDir()
	pub := &capturingPublisher{}
	job := NewEmberJob([]EmberDataset{{
		Name:   "installed_capacity_monthly",
		Metric: domain.MetricCapacity,
		Fetch:  staticFetch(nil),
	}}, processedDir, pub, discardLogger(), observability.NewMetricsForTesting())

	require.NoError(t, job.Run(context.Background()))
	assert.NoFileExists(t, filepath.Join(processedDir, "installed_capacity_monthly.json"))
	assert.Empty(t, pub.batches)
}

func TestEmberJob_Run_FetchErrorAborts(t *testing.T) {
	boom := errors.New("api unavailable")
	job := NewEmberJob([]EmberDataset{{
		Name:   "electricity_generation_monthly",
		Metric: domain.MetricGeneration,
		Fetch: func(_ context.Context) ([]domain.RawRow, error) {
			return nil, boom
		},
	}}, t.TempDir(), nil, discardLogger(), observability.NewMetricsForTesting())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "electricity_generation_monthly")
}

func TestEmberJob_Run_PublishErrorAborts(t *testing.T) {
	twh := 1.0
	rows := []domain.RawRow{
		{Entity: "Brazil", EntityCode: "BRA", Date: "2022", Series: "Hydro", GenerationTWh: &twh},
	}
	pub := &capturingPublisher{err: errors.New("broker down")}

	job := NewEmberJob([]EmberDataset{{
		Name:   "electricity_generation_yearly",
		Metric: domain.MetricGeneration,
		Fetch:  staticFetch(rows),
	}}, t.TempDir(), pub, discardLogger(), observability.NewMetricsForTesting())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish")
}
