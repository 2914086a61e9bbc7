package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recwatch",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "recwatch",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	FramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recwatch",
		Name:      "feed_frames_total",
		Help:      "Total decoded feed frames by event tag.",
	}, []string{"event"})

	DecodeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recwatch",
		Name:      "feed_decode_failures_total",
		Help:      "Total feed frames dropped because they failed to decode.",
	})

	ReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recwatch",
		Name:      "feed_reconnects_total",
		Help:      "Total scheduled reconnect attempts to the recorder feed.",
	})

	ConnectionState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "recwatch",
		Name:      "feed_connection_state",
		Help:      "Feed connection state (0=disconnected, 1=connecting, 2=connected, 3=error).",
	})

	ActiveDownloads = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "recwatch",
		Name:      "active_downloads",
		Help:      "Number of downloads currently tracked in the reconciled view.",
	})

	StoreVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "recwatch",
		Name:      "store_version",
		Help:      "Reconciliation store mutation counter.",
	})

	JournalWriteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "recwatch",
		Name:      "journal_write_errors_total",
		Help:      "Total failed writes to the event journal.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		FramesTotal,
		DecodeFailuresTotal,
		ReconnectsTotal,
		ConnectionState,
		ActiveDownloads,
		StoreVersion,
		JournalWriteErrors,
	)
}
