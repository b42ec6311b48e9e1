package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the pipeline.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	StageDuration   *prometheus.HistogramVec // labels: stage

	// Fetcher.
	FetchAttempts  *prometheus.CounterVec // labels: outcome={ok,status,error}
	MonthsFetched  *prometheus.CounterVec // labels: outcome={fetched,skipped,failed}
	FetchedBytes   prometheus.Counter
	FilesExtracted *prometheus.CounterVec // labels: outcome={renamed,kept_name}

	// Weekly aggregator.
	DailyFiles       *prometheus.CounterVec // labels: outcome={processed,skipped,malformed}
	WeeksFinalized   *prometheus.CounterVec // labels: outcome={written,exists,empty}
	GapFilledSeconds prometheus.Counter

	// Threshold counter.
	SummaryRows prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRunning,
		m.StageDuration,
		m.FetchAttempts,
		m.MonthsFetched,
		m.FetchedBytes,
		m.FilesExtracted,
		m.DailyFiles,
		m.WeeksFinalized,
		m.GapFilledSeconds,
		m.SummaryRows,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridfreq",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gridfreq",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"stage"}),
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridfreq",
			Name:      "fetch_attempts_total",
			Help:      "Archive download attempts by outcome.",
		}, []string{"outcome"}),
		MonthsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridfreq",
			Name:      "months_total",
			Help:      "Months considered by the fetcher, by outcome.",
		}, []string{"outcome"}),
		FetchedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridfreq",
			Name:      "fetched_bytes_total",
			Help:      "Bytes of archive data written to disk.",
		}),
		FilesExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridfreq",
			Name:      "files_extracted_total",
			Help:      "Daily CSV files moved out of archives, by naming outcome.",
		}, []string{"outcome"}),
		DailyFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridfreq",
			Name:      "daily_files_total",
			Help:      "Daily files seen by the weekly aggregator, by outcome.",
		}, []string{"outcome"}),
		WeeksFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridfreq",
			Name:      "weeks_finalized_total",
			Help:      "Weekly series finalized, by outcome.",
		}, []string{"outcome"}),
		GapFilledSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridfreq",
			Name:      "gap_filled_seconds_total",
			Help:      "Seconds of weekly series filled from neighbouring samples.",
		}),
		SummaryRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridfreq",
			Name:      "summary_rows",
			Help:      "Rows in the most recently written weekly summary.",
		}),
	}
}
