package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// dataset acquisition pipeline.
type Metrics struct {
	// Ember API metrics.
	EmberRequests   *prometheus.CounterVec   // labels: endpoint, outcome={success,error}
	EmberDuration   *prometheus.HistogramVec // labels: endpoint
	CacheLookups    *prometheus.CounterVec   // labels: result={hit,miss,expired}
	RecordsFetched  prometheus.Counter
	TransformErrors prometheus.Counter

	// File download metrics.
	DownloadBytes    *prometheus.CounterVec   // labels: dataset
	DownloadDuration *prometheus.HistogramVec // labels: dataset

	// Pipeline metrics.
	JobRuns          *prometheus.CounterVec // labels: job, outcome={success,error}
	PipelineRunning  prometheus.Gauge
	RecordsPublished prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.EmberRequests,
		m.EmberDuration,
		m.CacheLookups,
		m.RecordsFetched,
		m.TransformErrors,
		m.DownloadBytes,
		m.DownloadDuration,
		m.JobRuns,
		m.PipelineRunning,
		m.RecordsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EmberRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "energy_etl",
			Name:      "ember_requests_total",
			Help:      "Ember API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		EmberDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "energy_etl",
			Name:      "ember_request_duration_seconds",
			Help:      "Ember API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "energy_etl",
			Name:      "ember_cache_lookups_total",
			Help:      "Ember response cache lookups by result.",
		}, []string{"result"}),
		RecordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "energy_etl",
			Name:      "records_fetched_total",
			Help:      "Total normalized energy records produced from Ember responses.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "energy_etl",
			Name:      "transform_errors_total",
			Help:      "Total rows skipped due to normalization failures.",
		}),
		DownloadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "energy_etl",
			Name:      "download_bytes_total",
			Help:      "Bytes downloaded per dataset.",
		}, []string{"dataset"}),
		DownloadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "energy_etl",
			Name:      "download_duration_seconds",
			Help:      "Duration of a complete dataset download.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"dataset"}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "energy_etl",
			Name:      "job_runs_total",
			Help:      "Dataset job executions by job name and outcome.",
		}, []string{"job", "outcome"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "energy_etl",
			Name:      "pipeline_running",
			Help:      "1 when the refresh pipeline is active, 0 when shut down.",
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "energy_etl",
			Name:      "records_published_total",
			Help:      "Total records published to the Kafka sink topic.",
		}),
	}
}
