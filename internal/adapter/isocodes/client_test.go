package isocodes

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/energy-data-etl/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html><body>
<h1>Country codes</h1>
<table class="table">
  <thead>
    <tr><th>Country</th><th>Alpha-2 code</th><th>Alpha-3 code</th><th>Numeric</th></tr>
  </thead>
  <tbody>
    <tr><td>Brazil</td><td>BR</td><td>BRA</td><td>076</td></tr>
    <tr><td>Germany</td><td>DE</td><td>DEU</td><td>276</td></tr>
    <tr><td>United States of America (the)</td><td>US</td><td>USA</td><td>840</td></tr>
  </tbody>
</table>
</body></html>`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFetcher(url, rawDir string) *Fetcher {
	return NewFetcher(url, rawDir, 5*time.Second, discardLogger(), observability.NewMetricsForTesting())
}

func TestFetcher_Run_WritesCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	rawDir := t.TempDir()
	require.NoError(t, testFetcher(srv.URL, rawDir).Run(context.Background()))

	f, err := os.Open(filepath.Join(rawDir, OutputFile))
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4, "header plus three countries")

	assert.Equal(t, []string{"Country", "Alpha-2 code", "Alpha-3 code", "Numeric"}, records[0])
	assert.Equal(t, []string{"Brazil", "BR", "BRA", "076"}, records[1])
	assert.Equal(t, "USA", records[3][2])
}

func TestFetcher_Run_NoTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>maintenance</p></body></html>"))
	}))
	defer srv.Close()

	err := testFetcher(srv.URL, t.TempDir()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tables")
}

func TestFetcher_Run_MissingAlpha3Column(t *testing.T) {
	page := `<table><tr><th>Country</th><th>Code</th></tr><tr><td>Brazil</td><td>BR</td></tr></table>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	err := testFetcher(srv.URL, t.TempDir()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Alpha-3 code")
}

func TestFetcher_Run_DuplicateCodes(t *testing.T) {
	page := `<table>
		<tr><th>Country</th><th>Alpha-3 code</th></tr>
		<tr><td>Brazil</td><td>BRA</td></tr>
		<tr><td>Brasil</td><td>BRA</td></tr>
	</table>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	err := testFetcher(srv.URL, t.TempDir()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestFetcher_Run_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := testFetcher(srv.URL, t.TempDir()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestParseFirstTable(t *testing.T) {
	t.Run("th header", func(t *testing.T) {
		header, rows, err := parseFirstTable(strings.NewReader(samplePage))
		require.NoError(t, err)
		assert.Equal(t, []string{"Country", "Alpha-2 code", "Alpha-3 code", "Numeric"}, header)
		require.Len(t, rows, 3)
		assert.Equal(t, "Germany", rows[1][0])
	})

	t.Run("first table wins", func(t *testing.T) {
		page := `<table><tr><th>A</th></tr><tr><td>first</td></tr></table>
			<table><tr><th>B</th></tr><tr><td>second</td></tr></table>`
		header, rows, err := parseFirstTable(strings.NewReader(page))
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, header)
		require.Len(t, rows, 1)
		assert.Equal(t, "first", rows[0][0])
	})

	t.Run("td-only table promotes first row to header", func(t *testing.T) {
		page := `<table><tr><td>Country</td><td>Alpha-3 code</td></tr><tr><td>Brazil</td><td>BRA</td></tr></table>`
		header, rows, err := parseFirstTable(strings.NewReader(page))
		require.NoError(t, err)
		assert.Equal(t, []string{"Country", "Alpha-3 code"}, header)
		require.Len(t, rows, 1)
	})

	t.Run("whitespace collapsed in cells", func(t *testing.T) {
		page := "<table><tr><th>Name</th></tr><tr><td>  South\n  Africa </td></tr></table>"
		_, rows, err := parseFirstTable(strings.NewReader(page))
		require.NoError(t, err)
		assert.Equal(t, "South Africa", rows[0][0])
	})
}

func TestValidateTable_EmptyRows(t *testing.T) {
	err := validateTable([]string{"Country", alpha3Column}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}
