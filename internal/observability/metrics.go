package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wq_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec // labels: phase={fetch,run}, outcome={success,error}
	RunDuration      *prometheus.HistogramVec
	PipelineRunning  prometheus.Gauge
	LastSuccess      prometheus.Gauge
	StageRows        *prometheus.GaugeVec // labels: stage
	RowsDropped      *prometheus.CounterVec
	ModelsFitted     prometheus.Gauge
	ModelsSkipped    prometheus.Gauge
	ResultsPublished prometheus.Counter

	// Water Quality Portal client metrics.
	WQPRequests    *prometheus.CounterVec   // labels: endpoint={result,station}, outcome={success,error}
	WQPAPIDuration *prometheus.HistogramVec // labels: endpoint
	WQPRowsFetched *prometheus.CounterVec   // labels: endpoint
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.PipelineRunning,
		m.LastSuccess,
		m.StageRows,
		m.RowsDropped,
		m.ModelsFitted,
		m.ModelsSkipped,
		m.ResultsPublished,
		m.WQPRequests,
		m.WQPAPIDuration,
		m.WQPRowsFetched,
	)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline phase executions by phase and outcome.",
		}, []string{"phase", "outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a pipeline phase.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline phase is executing, 0 otherwise.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful transform run.",
		}),
		StageRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_rows",
			Help:      "Rows output by each pipeline stage in the last run.",
		}, []string{"stage"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows dropped during harmonization by reason.",
		}, []string{"reason"}),
		ModelsFitted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "models_fitted",
			Help:      "Partitions with a linear fit in the last run.",
		}),
		ModelsSkipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "models_skipped",
			Help:      "Partitions skipped for too few years in the last run.",
		}),
		ResultsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_published_total",
			Help:      "Model fits written to the Kafka topic.",
		}),
		WQPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wqp_requests_total",
			Help:      "Water Quality Portal requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		WQPAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wqp_api_duration_seconds",
			Help:      "Water Quality Portal request duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"endpoint"}),
		WQPRowsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wqp_rows_fetched_total",
			Help:      "CSV rows decoded from Water Quality Portal responses.",
		}, []string{"endpoint"}),
	}
}
