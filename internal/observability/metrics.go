package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "outbreak_etl"

// Metrics holds the Prometheus collectors for one batch run. Each Metrics
// owns its registry so a run can push exactly its own series to a
// Pushgateway.
type Metrics struct {
	Registry *prometheus.Registry

	RowsRead         *prometheus.CounterVec // labels: metric
	SeriesAggregated *prometheus.CounterVec // labels: metric
	SeriesRetained   *prometheus.CounterVec // labels: metric
	SeriesRejected   *prometheus.CounterVec // labels: metric, reason
	Diagnostics      *prometheus.CounterVec // labels: kind
	CountriesEmitted prometheus.Gauge
	LoadErrors       *prometheus.CounterVec // labels: sink

	Downloads        *prometheus.CounterVec // labels: outcome
	DownloadDuration prometheus.Histogram

	RunDuration     prometheus.Gauge
	LastSuccessTime prometheus.Gauge
}

// NewMetrics creates the run metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Raw rows read per metric.",
		}, []string{"metric"}),
		SeriesAggregated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_aggregated_total",
			Help:      "Country-level series produced by aggregation per metric.",
		}, []string{"metric"}),
		SeriesRetained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_retained_total",
			Help:      "Series that passed the metric threshold.",
		}, []string{"metric"}),
		SeriesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_rejected_total",
			Help:      "Series dropped by the metric threshold, by reason.",
		}, []string{"metric", "reason"}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Recovered data anomalies by kind.",
		}, []string{"kind"}),
		CountriesEmitted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "countries_emitted",
			Help:      "Countries with at least one qualifying metric in the last run.",
		}),
		LoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Sink write failures.",
		}, []string{"sink"}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Source file downloads by outcome (ok, error).",
		}, []string{"outcome"}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Time to fetch one source file.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last extract-transform-load run.",
		}),
		LastSuccessTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}

	m.Registry.MustRegister(
		m.RowsRead,
		m.SeriesAggregated,
		m.SeriesRetained,
		m.SeriesRejected,
		m.Diagnostics,
		m.CountriesEmitted,
		m.LoadErrors,
		m.Downloads,
		m.DownloadDuration,
		m.RunDuration,
		m.LastSuccessTime,
	)

	return m
}

// Push sends the registry to a Prometheus Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if err := push.New(gatewayURL, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
