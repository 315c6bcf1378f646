package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Phases label the reconciliation pass a measurement belongs to.
const (
	PhaseFiles     = "files"
	PhaseAssets    = "assets"
	PhaseLibraries = "libraries"
	PhaseClient    = "client"
	PhaseLoader    = "loader"
)

// Metrics collects download statistics. A nil *Metrics discards everything.
type Metrics struct {
	filesFetched *prometheus.CounterVec
	failures     *prometheus.CounterVec
	bytes        *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		filesFetched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcher_files_fetched_total",
				Help: "Total number of files downloaded and verified",
			},
			[]string{"phase"},
		),
		failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcher_fetch_failures_total",
				Help: "Total number of files that could not be fetched after all retries",
			},
			[]string{"phase"},
		),
		bytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launcher_bytes_downloaded_total",
				Help: "Total number of bytes written to verified files",
			},
			[]string{"phase"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launcher_sync_duration_seconds",
				Help:    "Duration of a reconciliation pass in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
			},
			[]string{"phase"},
		),
	}
}

func (m *Metrics) FileFetched(phase string, size int64) {
	if m == nil {
		return
	}
	m.filesFetched.WithLabelValues(phase).Inc()
	if size > 0 {
		m.bytes.WithLabelValues(phase).Add(float64(size))
	}
}

func (m *Metrics) FetchFailed(phase string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(phase).Inc()
}

func (m *Metrics) ObservePass(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(phase).Observe(d.Seconds())
}
