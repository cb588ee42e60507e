package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "adsb_db"

// Metrics holds the Prometheus collectors for the database builder.
type Metrics struct {
	BuildsTotal       *prometheus.CounterVec // labels: outcome={success,fetch_error,decode_error,schema_error,write_error,error}
	BuildDuration     prometheus.Histogram
	LastSuccess       prometheus.Gauge
	SchedulerRunning  prometheus.Gauge
	PartitionsWritten prometheus.Counter

	// Feed metrics.
	FetchDuration   prometheus.Histogram
	BytesDownloaded prometheus.Counter

	// Record metrics.
	RecordsRead      prometheus.Counter
	RecordsCancelled prometheus.Counter
	RecordsSkipped   prometheus.Counter
	RecordsDuplicate prometheus.Counter

	NotifyErrors prometheus.Counter
}

// NewMetrics creates and registers all builder metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		BuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Database builds by outcome.",
		}, []string{"outcome"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of a complete fetch-partition-write build.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful build.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the periodic scheduler is active, 0 when shut down.",
		}),
		PartitionsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_written_total",
			Help:      "Total partition files written.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Feed download and decompression duration.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_bytes_downloaded_total",
			Help:      "Compressed feed bytes downloaded.",
		}),
		RecordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Feed records parsed.",
		}),
		RecordsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_cancelled_total",
			Help:      "Records dropped for a cancelled registration.",
		}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Malformed lines skipped in lenient mode.",
		}),
		RecordsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_duplicate_total",
			Help:      "Records that replaced an earlier record with the same icao.",
		}),
		NotifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_errors_total",
			Help:      "Failed build notifications.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.BuildsTotal,
		m.BuildDuration,
		m.LastSuccess,
		m.SchedulerRunning,
		m.PartitionsWritten,
		m.FetchDuration,
		m.BytesDownloaded,
		m.RecordsRead,
		m.RecordsCancelled,
		m.RecordsSkipped,
		m.RecordsDuplicate,
		m.NotifyErrors,
	}
}
