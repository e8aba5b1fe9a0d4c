package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"github.com/pecigonzalo/remote-shuffle/internal/shuffle"
)

// DeviceObserver is notified about the health of the mount point it writes to.
type DeviceObserver interface {
	NotifyError(mountPoint string, err error)
	NotifyHighDiskUsage(mountPoint string)
	NotifyHealthy(mountPoint string)
	NotifyNonCriticalError(mountPoint string, err error)
}

// DeviceMonitor tracks local mount points and the writers using them.
type DeviceMonitor interface {
	RegisterObserver(mountPoint string, observer DeviceObserver)
	UnregisterObserver(mountPoint string, observer DeviceObserver)
	ReportNonCriticalError(mountPoint string, err error)
	// Healthy reports whether new files may be created on the mount point.
	Healthy(mountPoint string) bool
	Check(ctx context.Context)
}

var (
	_ DeviceMonitor = (*LocalDeviceMonitor)(nil)
	_ DeviceMonitor = NoopDeviceMonitor{}
)

// NoopDeviceMonitor considers every mount point healthy.
type NoopDeviceMonitor struct{}

func (NoopDeviceMonitor) RegisterObserver(string, DeviceObserver)   {}
func (NoopDeviceMonitor) UnregisterObserver(string, DeviceObserver) {}
func (NoopDeviceMonitor) ReportNonCriticalError(string, error)      {}
func (NoopDeviceMonitor) Healthy(string) bool                       { return true }
func (NoopDeviceMonitor) Check(context.Context)                     {}

// UsageFunc returns the used and total bytes of the filesystem holding path.
type UsageFunc func(path string) (used, total uint64, err error)

// StatfsUsage reads disk usage with statfs.
func StatfsUsage(path string) (uint64, uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	total := st.Blocks * uint64(st.Bsize)
	free := st.Bavail * uint64(st.Bsize)
	return total - free, total, nil
}

type deviceStatus int

const (
	deviceHealthy deviceStatus = iota
	deviceHighUsage
	deviceError
)

type mountState struct {
	status    deviceStatus
	observers map[DeviceObserver]struct{}
}

// LocalDeviceMonitor probes every mount point with a small write and a usage
// check. A failed probe destroys the writers on that mount point.
type LocalDeviceMonitor struct {
	fs             afero.Fs
	usage          UsageFunc
	highUsageRatio float64

	mu     sync.Mutex
	mounts map[string]*mountState

	logger zerolog.Logger
}

func NewLocalDeviceMonitor(config shuffle.DeviceConfig, fs afero.Fs, mountPoints []string, usage UsageFunc, logger *zerolog.Logger) *LocalDeviceMonitor {
	m := &LocalDeviceMonitor{
		fs:             fs,
		usage:          usage,
		highUsageRatio: config.HighUsageRatio,
		mounts:         make(map[string]*mountState, len(mountPoints)),
		logger:         logger.With().Str("component", "device-monitor").Logger(),
	}
	for _, mp := range mountPoints {
		m.mounts[mp] = &mountState{observers: make(map[DeviceObserver]struct{})}
	}
	return m
}

func (m *LocalDeviceMonitor) RegisterObserver(mountPoint string, observer DeviceObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.mounts[mountPoint]
	if !ok {
		state = &mountState{observers: make(map[DeviceObserver]struct{})}
		m.mounts[mountPoint] = state
	}
	state.observers[observer] = struct{}{}
}

func (m *LocalDeviceMonitor) UnregisterObserver(mountPoint string, observer DeviceObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.mounts[mountPoint]; ok {
		delete(state.observers, observer)
	}
}

func (m *LocalDeviceMonitor) observers(mountPoint string) []DeviceObserver {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.mounts[mountPoint]
	if !ok {
		return nil
	}
	out := make([]DeviceObserver, 0, len(state.observers))
	for o := range state.observers {
		out = append(out, o)
	}
	return out
}

func (m *LocalDeviceMonitor) ReportNonCriticalError(mountPoint string, err error) {
	deviceErrors.WithLabelValues(mountPoint, "non_critical").Inc()
	m.logger.Warn().Err(err).Str("mountPoint", mountPoint).Msg("Non critical device error")
	for _, o := range m.observers(mountPoint) {
		o.NotifyNonCriticalError(mountPoint, err)
	}
}

func (m *LocalDeviceMonitor) Healthy(mountPoint string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.mounts[mountPoint]
	return ok && state.status == deviceHealthy
}

func (m *LocalDeviceMonitor) setStatus(mountPoint string, status deviceStatus) deviceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.mounts[mountPoint]
	previous := state.status
	state.status = status
	return previous
}

func (m *LocalDeviceMonitor) mountPoints() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.mounts))
	for mp := range m.mounts {
		out = append(out, mp)
	}
	return out
}

// Check probes every mount point and notifies observers of status changes.
func (m *LocalDeviceMonitor) Check(ctx context.Context) {
	for _, mp := range m.mountPoints() {
		if ctx.Err() != nil {
			return
		}
		m.checkMount(mp)
	}
}

func (m *LocalDeviceMonitor) checkMount(mountPoint string) {
	if err := m.probe(mountPoint); err != nil {
		deviceErrors.WithLabelValues(mountPoint, "critical").Inc()
		m.logger.Error().Err(err).Str("mountPoint", mountPoint).Msg("Device probe failed")
		m.setStatus(mountPoint, deviceError)
		for _, o := range m.observers(mountPoint) {
			o.NotifyError(mountPoint, err)
		}
		return
	}

	used, total, err := m.usage(mountPoint)
	if err == nil && total > 0 && float64(used)/float64(total) >= m.highUsageRatio {
		if m.setStatus(mountPoint, deviceHighUsage) != deviceHighUsage {
			m.logger.Warn().
				Str("mountPoint", mountPoint).
				Uint64("used", used).
				Uint64("total", total).
				Msg("Device usage high")
		}
		for _, o := range m.observers(mountPoint) {
			o.NotifyHighDiskUsage(mountPoint)
		}
		return
	}
	if err != nil {
		m.logger.Warn().Err(err).Str("mountPoint", mountPoint).Msg("Unable to read device usage")
	}

	if m.setStatus(mountPoint, deviceHealthy) != deviceHealthy {
		m.logger.Info().Str("mountPoint", mountPoint).Msg("Device healthy again")
		for _, o := range m.observers(mountPoint) {
			o.NotifyHealthy(mountPoint)
		}
	}
}

func (m *LocalDeviceMonitor) probe(mountPoint string) error {
	path := filepath.Join(mountPoint, ".probe-"+uuid.NewString())
	if err := afero.WriteFile(m.fs, path, []byte("probe"), 0o644); err != nil {
		return fmt.Errorf("write probe file: %w", err)
	}
	if err := m.fs.Remove(path); err != nil {
		return fmt.Errorf("remove probe file: %w", err)
	}
	return nil
}
