package reader

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "remote_shuffle"

	fetchRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "reader_fetch_retries_total",
		Namespace: metricsNamespace,
		Help:      "Failed attempts to open a partition reader or fetch a chunk",
	}, []string{"stage"})
	excludedWorkers = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "reader_excluded_workers_total",
		Namespace: metricsNamespace,
		Help:      "Workers added to the fetch exclusion table",
	})
	skippedLocations = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "reader_skipped_locations_total",
		Namespace: metricsNamespace,
		Help:      "Locations skipped by the range read filter",
	})
	duplicateBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "reader_discarded_batches_total",
		Namespace: metricsNamespace,
		Help:      "Batches discarded as duplicates, stale attempts or out of range",
	})

	bytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "reader_bytes_read_total",
		Namespace: metricsNamespace,
		Help:      "Framed bytes of accepted batches",
	})
	readTime = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "reader_read_time_seconds_total",
		Namespace: metricsNamespace,
		Help:      "Time spent filling the decode buffer",
	})
)

// MetricsCallback receives read statistics of one stream.
type MetricsCallback interface {
	IncBytesRead(n int64)
	IncReadTime(d time.Duration)
}

var _ MetricsCallback = PrometheusCallback{}

// PrometheusCallback exports read statistics as process wide counters.
type PrometheusCallback struct{}

func (PrometheusCallback) IncBytesRead(n int64) {
	bytesRead.Add(float64(n))
}

func (PrometheusCallback) IncReadTime(d time.Duration) {
	readTime.Add(d.Seconds())
}
