package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aethra"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline and the query API.
type Metrics struct {
	PipelineRunning   prometheus.Gauge
	LastSuccessfulRun prometheus.Gauge
	StageDuration     *prometheus.HistogramVec // labels: stage={resolve,fetch,filter,import,cleanup}

	// Fetcher.
	FilesDownloaded  *prometheus.CounterVec // labels: outcome={downloaded,skipped,failed,not_found}
	DownloadBytes    prometheus.Counter
	DownloadDuration prometheus.Histogram

	// Filter and importer.
	MessagesFiltered *prometheus.CounterVec // labels: result={kept,dropped,malformed}
	MessagesImported *prometheus.CounterVec // labels: outcome={success,error}
	RecordsWritten   *prometheus.CounterVec // labels: op={insert,update}
	SnapDistance     prometheus.Histogram

	CleanupDeleted *prometheus.CounterVec // labels: kind={tmp,cycle_dir,filtered_dir,combined,records}

	HTTPRequests *prometheus.CounterVec // labels: route, status
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress.",
		}),
		LastSuccessfulRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_run_timestamp_seconds",
			Help:      "Unix time of the last completed pipeline run.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800, 3600},
		}, []string{"stage"}),
		FilesDownloaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_downloaded_total",
			Help:      "Grid files handled by the fetcher by outcome.",
		}, []string{"outcome"}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes written by completed grid file downloads.",
		}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Duration of a single grid file download attempt.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		MessagesFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_filtered_total",
			Help:      "Grid messages seen by the filter by result.",
		}, []string{"result"}),
		MessagesImported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_imported_total",
			Help:      "Filtered grid messages processed by the importer by outcome.",
		}, []string{"outcome"}),
		RecordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Forecast records written by operation.",
		}, []string{"op"}),
		SnapDistance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snap_distance_km",
			Help:      "Great-circle distance from a place to its nearest grid point.",
			Buckets:   []float64{1, 2.5, 5, 10, 15, 20, 30, 50},
		}),
		CleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_deleted_total",
			Help:      "Items removed by retention cleanup by kind.",
		}, []string{"kind"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Query API requests by route and status code.",
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelineRunning,
		m.LastSuccessfulRun,
		m.StageDuration,
		m.FilesDownloaded,
		m.DownloadBytes,
		m.DownloadDuration,
		m.MessagesFiltered,
		m.MessagesImported,
		m.RecordsWritten,
		m.SnapDistance,
		m.CleanupDeleted,
		m.HTTPRequests,
	}
}

// NewMetrics creates all metrics and registers them with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
