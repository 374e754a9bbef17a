// Package ember provides the client for the Ember Energy API
// (https://api.ember-energy.org) plus a disk-backed response cache.
package ember

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/energy-data-etl/internal/domain"
	"github.com/couchcryptid/energy-data-etl/internal/observability"
)

// maxRetries caps transient-failure retries per request.
const maxRetries = 3

// Query holds the filter parameters accepted by the Ember dataset endpoints.
// Zero values are omitted from the request.
type Query struct {
	EntityCode        string
	Series            string
	StartDate         string // "2000", "2000-01", or "2000-01-01"
	EndDate           string
	IsAggregateSeries *bool
}

// Values encodes the query as URL parameters, excluding the API key.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.EntityCode != "" {
		v.Set("entity_code", q.EntityCode)
	}
	if q.Series != "" {
		v.Set("series", q.Series)
	}
	if q.StartDate != "" {
		v.Set("start_date", q.StartDate)
	}
	if q.EndDate != "" {
		v.Set("end_date", q.EndDate)
	}
	if q.IsAggregateSeries != nil {
		v.Set("is_aggregate_series", strconv.FormatBool(*q.IsAggregateSeries))
	}
	return v
}

// Fetcher is the read interface over the Ember API, satisfied by both Client
// and CachedClient.
type Fetcher interface {
	GenerationYearly(ctx context.Context, q Query) ([]domain.RawRow, error)
	GenerationMonthly(ctx context.Context, q Query) ([]domain.RawRow, error)
	CapacityMonthly(ctx context.Context, q Query) ([]domain.RawRow, error)
}

// Client calls the Ember Energy API over HTTPS.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an Ember API client. The API key is appended to every
// request as the api_key query parameter and never logged.
func NewClient(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// GenerationYearly fetches yearly electricity generation rows.
func (c *Client) GenerationYearly(ctx context.Context, q Query) ([]domain.RawRow, error) {
	return c.fetch(ctx, "/v1/electricity-generation/yearly", q.Values())
}

// GenerationMonthly fetches monthly electricity generation rows.
func (c *Client) GenerationMonthly(ctx context.Context, q Query) ([]domain.RawRow, error) {
	return c.fetch(ctx, "/v1/electricity-generation/monthly", q.Values())
}

// CapacityMonthly fetches monthly installed capacity rows.
func (c *Client) CapacityMonthly(ctx context.Context, q Query) ([]domain.RawRow, error) {
	return c.fetch(ctx, "/v1/installed-capacity/monthly", q.Values())
}

// Options fetches the available filter values for a dataset, e.g.
// Options(ctx, "electricity-generation", "monthly", "entity").
func (c *Client) Options(ctx context.Context, dataset, resolution, filter string) ([]domain.RawRow, error) {
	endpoint := fmt.Sprintf("/v1/options/%s/%s/%s",
		url.PathEscape(dataset), url.PathEscape(resolution), url.PathEscape(filter))
	return c.fetch(ctx, endpoint, url.Values{})
}

func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) ([]domain.RawRow, error) {
	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	return domain.ParseEnvelope(body)
}

// get issues the GET request with retries. Transient failures (network
// errors, 5xx, 429) are retried up to maxRetries with exponential backoff;
// other HTTP errors fail immediately.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if len(params) == 0 {
		c.logger.Info("requesting ember endpoint", "endpoint", endpoint, "filters", "none")
	} else {
		c.logger.Info("requesting ember endpoint", "endpoint", endpoint, "filters", params.Encode())
	}

	// The key is added after logging so it never reaches the logs.
	withKey := url.Values{}
	for k, vs := range params {
		withKey[k] = vs
	}
	if c.apiKey != "" {
		withKey.Set("api_key", c.apiKey)
	}
	fullURL := c.baseURL + endpoint + "?" + withKey.Encode()

	var body []byte
	op := func() error {
		var err error
		body, err = c.doRequest(ctx, fullURL, endpoint)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		c.metrics.EmberRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}

	c.metrics.EmberRequests.WithLabelValues(endpoint, "success").Inc()
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ember request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.metrics.EmberDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		err := fmt.Errorf("ember API error: status %d: %s", resp.StatusCode, snippet)
		if retryableStatus(resp.StatusCode) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}
