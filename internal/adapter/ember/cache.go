package ember

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/couchcryptid/energy-data-etl/internal/domain"
	"github.com/couchcryptid/energy-data-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// unsafeChars matches filename characters outside [A-Za-z0-9_-], replaced by
// underscores when deriving cache file names from query parameters.
var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// CachedClient wraps a Fetcher with a disk-backed response cache. Responses
// are stored as JSON under the raw data directory, keyed by endpoint name and
// query parameters, and revalidated after the TTL elapses. Empty responses
// are never cached so transient gaps can be retried.
type CachedClient struct {
	inner   Fetcher
	dir     string
	ttl     time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCachedClient creates a cache decorator around an Ember fetcher. A ttl
// of zero disables expiry (cache entries live forever, matching one-shot use).
func NewCachedClient(inner Fetcher, dir string, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *CachedClient {
	return &CachedClient{
		inner:   inner,
		dir:     dir,
		ttl:     ttl,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
}

// WithClock overrides the cache's time source, for tests.
func (c *CachedClient) WithClock(clock clockwork.Clock) *CachedClient {
	c.clock = clock
	return c
}

func (c *CachedClient) GenerationYearly(ctx context.Context, q Query) ([]domain.RawRow, error) {
	return c.fetch(ctx, "electricity_generation_yearly", q, c.inner.GenerationYearly)
}

func (c *CachedClient) GenerationMonthly(ctx context.Context, q Query) ([]domain.RawRow, error) {
	return c.fetch(ctx, "electricity_generation_monthly", q, c.inner.GenerationMonthly)
}

func (c *CachedClient) CapacityMonthly(ctx context.Context, q Query) ([]domain.RawRow, error) {
	return c.fetch(ctx, "installed_capacity_monthly", q, c.inner.CapacityMonthly)
}

func (c *CachedClient) fetch(
	ctx context.Context,
	name string,
	q Query,
	fn func(context.Context, Query) ([]domain.RawRow, error),
) ([]domain.RawRow, error) {
	path := filepath.Join(c.dir, cacheFileName(name, q))

	if rows, ok := c.load(path); ok {
		c.logger.Info("loading cached ember response", "file", path)
		return rows, nil
	}

	rows, err := fn(ctx, q)
	if err != nil {
		return nil, err
	}

	if len(rows) > 0 {
		if err := c.store(path, rows); err != nil {
			// A failed cache write is not fatal; the data is already in hand.
			c.logger.Warn("cache write failed", "file", path, "error", err)
		}
	}
	return rows, nil
}

// load reads a cache entry, reporting whether it was usable. Expired entries
// count as misses.
func (c *CachedClient) load(path string) ([]domain.RawRow, bool) {
	info, err := os.Stat(path)
	if err != nil {
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	if c.ttl > 0 && c.clock.Now().Sub(info.ModTime()) > c.ttl {
		c.metrics.CacheLookups.WithLabelValues("expired").Inc()
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	var rows []domain.RawRow
	if err := json.Unmarshal(data, &rows); err != nil {
		c.logger.Warn("discarding corrupt cache entry", "file", path, "error", err)
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	c.metrics.CacheLookups.WithLabelValues("hit").Inc()
	return rows, true
}

// store writes a cache entry via temp file + rename so readers never observe
// a partial write.
func (c *CachedClient) store(path string, rows []domain.RawRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*")
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
	return os.Rename(tmp.Name(), path)
}

// cacheFileName builds the cache file name from the endpoint name and query,
// e.g. "electricity_generation_yearly_entity_code-BRA_start_date-2000.json".
func cacheFileName(name string, q Query) string {
	suffix := ""
	for _, kv := range sortedParams(q) {
		suffix += "_" + sanitize(kv[0]) + "-" + sanitize(kv[1])
	}
	return name + suffix + ".json"
}

// sortedParams flattens the query into deterministic key/value pairs.
// url.Values.Encode sorts by key, which keeps file names stable across runs.
func sortedParams(q Query) [][2]string {
	values := q.Values()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	// url.Values is a map; sort for stable iteration.
	sort.Strings(keys)
	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, values.Get(k)})
	}
	return pairs
}

func sanitize(s string) string {
	return unsafeChars.ReplaceAllString(s, "_")
}
