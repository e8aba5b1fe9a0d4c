// Package memory tracks bytes held by memory-tier partition files and by disk
// write buffers waiting to be flushed.
package memory

import (
	"github.com/pecigonzalo/remote-shuffle/internal/shuffle"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

var (
	metricsNamespace = "remote_shuffle"

	memoryFileStorageBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "memory_file_storage_bytes",
		Namespace: metricsNamespace,
		Help:      "Bytes held by memory-tier partition files",
	})
	diskBufferBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "disk_buffer_bytes",
		Namespace: metricsNamespace,
		Help:      "Bytes buffered for disk and distributed filesystem flushes",
	})
	pushPaused = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "push_paused",
		Namespace: metricsNamespace,
		Help:      "1 while pushes are paused because of memory pressure",
	})
)

// State is the congestion state derived from the tracked bytes.
type State int

const (
	Normal State = iota
	PushPaused
)

func (s State) String() string {
	if s == PushPaused {
		return "PUSH_PAUSED"
	}
	return "NORMAL"
}

// Manager is the process-wide memory accountant. It is shared by every writer
// and safe for concurrent use.
type Manager struct {
	memoryFileStorage atomic.Int64
	diskBuffer        atomic.Int64
	paused            atomic.Bool

	memoryFileLimit int64
	pauseThreshold  int64
	resumeThreshold int64
	logger          zerolog.Logger
}

func NewManager(config shuffle.MemoryConfig, logger *zerolog.Logger) *Manager {
	total := float64(config.MaxDirectMemory)
	return &Manager{
		memoryFileLimit: int64(total * config.MemoryFileStorageRatio),
		pauseThreshold:  int64(total * config.PausePushRatio),
		resumeThreshold: int64(total * config.ResumeRatio),
		logger:          logger.With().Str("component", "memory-manager").Logger(),
	}
}

func (m *Manager) IncrementMemoryFileStorage(n int64) {
	memoryFileStorageBytes.Set(float64(m.memoryFileStorage.Add(n)))
}

func (m *Manager) ReleaseMemoryFileStorage(n int64) {
	memoryFileStorageBytes.Set(float64(m.memoryFileStorage.Sub(n)))
}

func (m *Manager) IncrementDiskBuffer(n int64) {
	diskBufferBytes.Set(float64(m.diskBuffer.Add(n)))
}

func (m *Manager) ReleaseDiskBuffer(n int64) {
	diskBufferBytes.Set(float64(m.diskBuffer.Sub(n)))
}

func (m *Manager) MemoryFileStorage() int64 {
	return m.memoryFileStorage.Load()
}

func (m *Manager) DiskBuffer() int64 {
	return m.diskBuffer.Load()
}

// MemoryFileStorageAvailable reports whether a new memory-tier file may be
// created.
func (m *Manager) MemoryFileStorageAvailable() bool {
	return m.memoryFileStorage.Load() < m.memoryFileLimit
}

// ShouldEvict reports whether memory-tier files exceed their share and some
// of them should move to disk.
func (m *Manager) ShouldEvict() bool {
	return m.memoryFileStorage.Load() > m.memoryFileLimit
}

// State returns the congestion state. Pushes pause once the tracked bytes
// reach the pause threshold and resume only below the resume threshold.
func (m *Manager) State() State {
	used := m.memoryFileStorage.Load() + m.diskBuffer.Load()
	wasPaused := m.paused.Load()
	switch {
	case !wasPaused && used >= m.pauseThreshold:
		m.paused.Store(true)
		pushPaused.Set(1)
		m.logger.Warn().
			Int64("used", used).
			Int64("threshold", m.pauseThreshold).
			Msg("Pausing pushes on memory pressure")
		return PushPaused
	case wasPaused && used < m.resumeThreshold:
		m.paused.Store(false)
		pushPaused.Set(0)
		m.logger.Info().
			Int64("used", used).
			Msg("Resuming pushes")
		return Normal
	case wasPaused:
		return PushPaused
	default:
		return Normal
	}
}
