package ember

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/energy-data-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFetcher counts calls so cache hits can be asserted.
type countingFetcher struct {
	calls int
	rows  []domain.RawRow
	err   error
}

func (f *countingFetcher) GenerationYearly(_ context.Context, _ Query) ([]domain.RawRow, error) {
	f.calls++
	return f.rows, f.err
}

func (f *countingFetcher) GenerationMonthly(_ context.Context, _ Query) ([]domain.RawRow, error) {
	f.calls++
	return f.rows, f.err
}

func (f *countingFetcher) CapacityMonthly(_ context.Context, _ Query) ([]domain.RawRow, error) {
	f.calls++
	return f.rows, f.err
}

func sampleRows() []domain.RawRow {
	twh := 428.51
	return []domain.RawRow{
		{Entity: "Brazil", EntityCode: "BRA", Date: "2023", Series: "Hydro", GenerationTWh: &twh},
	}
}

func TestCachedClient_SecondCallHitsCache(t *testing.T) {
	dir := t.TempDir()
	inner := &countingFetcher{rows: sampleRows()}
	cached := NewCachedClient(inner, dir, time.Hour, discardLogger(), testMetrics())

	q := Query{EntityCode: "BRA", StartDate: "2000"}

	r1, err := cached.GenerationYearly(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, r1, 1)

	r2, err := cached.GenerationYearly(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls, "second call should be served from disk")
}

func TestCachedClient_DifferentQueriesMiss(t *testing.T) {
	dir := t.TempDir()
	inner := &countingFetcher{rows: sampleRows()}
	cached := NewCachedClient(inner, dir, time.Hour, discardLogger(), testMetrics())

	_, err := cached.GenerationYearly(context.Background(), Query{EntityCode: "BRA"})
	require.NoError(t, err)
	_, err = cached.GenerationYearly(context.Background(), Query{EntityCode: "DEU"})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedClient_EndpointsDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	inner := &countingFetcher{rows: sampleRows()}
	cached := NewCachedClient(inner, dir, time.Hour, discardLogger(), testMetrics())

	_, err := cached.GenerationYearly(context.Background(), Query{EntityCode: "BRA"})
	require.NoError(t, err)
	_, err = cached.GenerationMonthly(context.Background(), Query{EntityCode: "BRA"})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls, "same query on different endpoints must not share a cache entry")
}

func TestCachedClient_TTLExpiry(t *testing.T) {
	dir := t.TempDir()
	inner := &countingFetcher{rows: sampleRows()}
	fake := clockwork.NewFakeClockAt(time.Now())
	cached := NewCachedClient(inner, dir, time.Hour, discardLogger(), testMetrics()).WithClock(fake)

	_, err := cached.GenerationYearly(context.Background(), Query{EntityCode: "BRA"})
	require.NoError(t, err)

	fake.Advance(2 * time.Hour)

	_, err = cached.GenerationYearly(context.Background(), Query{EntityCode: "BRA"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "expired entry should be refetched")
}

func TestCachedClient_ZeroTTLNeverExpires(t *testing.T) {
	dir := t.TempDir()
	inner := &countingFetcher{rows: sampleRows()}
	fake := clockwork.NewFakeClockAt(time.Now())
	cached := NewCachedClient(inner, dir, 0, discardLogger(), testMetrics()).WithClock(fake)

	_, err := cached.GenerationYearly(context.Background(), Query{})
	require.NoError(t, err)

	fake.Advance(1000 * time.Hour)

	_, err = cached.GenerationYearly(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedClient_EmptyResponseNotCached(t *testing.T) {
	dir := t.TempDir()
	inner := &countingFetcher{rows: nil}
	cached := NewCachedClient(inner, dir, time.Hour, discardLogger(), testMetrics())

	_, err := cached.GenerationYearly(context.Background(), Query{})
	require.NoError(t, err)
	_, err = cached.GenerationYearly(context.Background(), Query{})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls, "empty responses must be retried, not cached")
}

func TestCachedClient_CorruptEntryRefetched(t *testing.T) {
	dir := t.TempDir()
	inner := &countingFetcher{rows: sampleRows()}
	cached := NewCachedClient(inner, dir, time.Hour, discardLogger(), testMetrics())

	q := Query{EntityCode: "BRA"}
	_, err := cached.GenerationYearly(context.Background(), q)
	require.NoError(t, err)

	// Corrupt the entry on disk.
	path := filepath.Join(dir, cacheFileName("electricity_generation_yearly", q))
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	rows, err := cached.GenerationYearly(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, inner.calls)
}

func TestCacheFileName(t *testing.T) {
	agg := false
	q := Query{EntityCode: "BRA", StartDate: "2000", IsAggregateSeries: &agg}

	name := cacheFileName("electricity_generation_yearly", q)
	assert.Equal(t, "electricity_generation_yearly_entity_code-BRA_is_aggregate_series-false_start_date-2000.json", name)

	assert.Equal(t, "installed_capacity_monthly.json", cacheFileName("installed_capacity_monthly", Query{}))

	// Unsafe characters are replaced, never passed through to the filesystem.
	odd := cacheFileName("opts", Query{Series: "Gas and Other Fossil"})
	assert.NotContains(t, odd, " ")
	assert.Contains(t, odd, "Gas_and_Other_Fossil")
}
