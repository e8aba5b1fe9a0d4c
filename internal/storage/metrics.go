package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "remote_shuffle"

	outstandingBuffers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name:      "buffers_outstanding",
		Namespace: metricsNamespace,
		Help:      "Number of pooled buffers taken and not yet released",
	}, []string{"pool"})

	flushedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "flushed_bytes_total",
		Namespace: metricsNamespace,
		Help:      "Total number of bytes written by flush tasks",
	}, []string{"flusher"})

	flushErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "flush_errors_total",
		Namespace: metricsNamespace,
		Help:      "Total number of failed flush tasks",
	}, []string{"flusher"})

	flushTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "flush_task_timeouts_total",
		Namespace: metricsNamespace,
		Help:      "Total number of flush tasks rejected because the queue stayed full",
	}, []string{"flusher"})

	flushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "flush_duration_seconds",
		Namespace: metricsNamespace,
		Help:      "Time spent running one flush task",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"flusher"})

	pushedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "pushed_bytes_total",
		Namespace: metricsNamespace,
		Help:      "Total number of bytes accepted by partition writers",
	})

	evictedFiles = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "evicted_memory_files_total",
		Namespace: metricsNamespace,
		Help:      "Total number of memory files moved to disk or the distributed filesystem",
	})

	activeWriters = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "partition_writers",
		Namespace: metricsNamespace,
		Help:      "Number of registered partition writers",
	})

	deviceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "device_errors_total",
		Namespace: metricsNamespace,
		Help:      "Total number of device errors per mount point",
	}, []string{"mount_point", "severity"})
)
