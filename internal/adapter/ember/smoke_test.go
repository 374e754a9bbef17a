//go:build ember

package ember

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Ember API and require a valid EMBER_API_KEY env var.
// Run with: go test -tags=ember ./internal/adapter/ember/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	key := os.Getenv("EMBER_API_KEY")
	if key == "" {
		t.Fatal("EMBER_API_KEY must be set to run smoke tests")
	}
	return &Client{
		apiKey:     key,
		baseURL:    "https://api.ember-energy.org",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     discardLogger(),
		metrics:    testMetrics(),
	}
}

func TestSmoke_GenerationYearly(t *testing.T) {
	c := smokeClient(t)

	agg := false
	rows, err := c.GenerationYearly(context.Background(), Query{
		EntityCode:        "BRA",
		StartDate:         "2000",
		IsAggregateSeries: &agg,
	})
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	for _, row := range rows {
		assert.Equal(t, "BRA", row.EntityCode)
		assert.NotEmpty(t, row.Series)
		assert.NotNil(t, row.GenerationTWh)
	}
}

func TestSmoke_Options(t *testing.T) {
	c := smokeClient(t)

	rows, err := c.Options(context.Background(), "electricity-generation", "monthly", "entity")
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
}
