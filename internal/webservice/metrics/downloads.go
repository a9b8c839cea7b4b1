package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Downloads tracks archive download outcomes.
type Downloads struct {
	inFlight    prometheus.Gauge
	completed   prometheus.Counter
	interrupted prometheus.Counter
	failed      prometheus.Counter
	bytes       prometheus.Counter
}

// NewDownloads creates the download metrics and registers them on reg.
func NewDownloads(reg prometheus.Registerer) *Downloads {
	return &Downloads{
		inFlight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "photodrop_downloads_in_flight",
			Help: "Number of archive downloads currently being streamed.",
		}),
		completed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "photodrop_downloads_completed_total",
			Help: "Archive downloads streamed to the end.",
		}),
		interrupted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "photodrop_downloads_interrupted_total",
			Help: "Archive downloads cut short by the client going away.",
		}),
		failed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "photodrop_downloads_failed_total",
			Help: "Archive downloads aborted by a server side error.",
		}),
		bytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "photodrop_download_bytes_total",
			Help: "Archive bytes written to clients.",
		}),
	}
}

// Started records a download entering the streaming phase.
func (d *Downloads) Started() {
	d.inFlight.Inc()
}

// Completed records a download streamed to the end.
func (d *Downloads) Completed() {
	d.inFlight.Dec()
	d.completed.Inc()
}

// Interrupted records a download cut short by the client.
func (d *Downloads) Interrupted() {
	d.inFlight.Dec()
	d.interrupted.Inc()
}

// Failed records a download aborted by a server side error.
func (d *Downloads) Failed() {
	d.inFlight.Dec()
	d.failed.Inc()
}

// AddBytes records n archive bytes written to a client.
func (d *Downloads) AddBytes(n int64) {
	d.bytes.Add(float64(n))
}
