package workers

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/pecigonzalo/remote-shuffle/internal/memory"
	"github.com/pecigonzalo/remote-shuffle/internal/protocol"
	"github.com/pecigonzalo/remote-shuffle/internal/registry"
	"github.com/pecigonzalo/remote-shuffle/internal/services"
	"github.com/pecigonzalo/remote-shuffle/internal/shuffle"
	"github.com/pecigonzalo/remote-shuffle/internal/storage"
)

// countingMonitor counts device checks.
type countingMonitor struct {
	storage.NoopDeviceMonitor
	checks atomic.Int64
}

func (m *countingMonitor) Check(context.Context) {
	m.checks.Inc()
}

func newTestConfig() shuffle.WorkerConfig {
	config := shuffle.DefaultWorkerConfig()
	config.Storage.Dirs = []string{"/mnt/disk1"}
	config.Storage.MemoryFileEnabled = true
	config.Storage.MemoryFileMaxSize = 1 << 20
	config.Storage.FlusherThreads = 1
	config.Storage.WriterCloseTimeout = time.Second
	config.Memory.MaxDirectMemory = 200
	config.Memory.MemoryFileStorageRatio = 0.5
	config.Memory.CheckInterval = 10 * time.Millisecond
	config.Device.CheckInterval = time.Minute
	return config
}

func TestShuffleManager(t *testing.T) {
	logger := zerolog.Nop()
	config := newTestConfig()
	mock := clock.NewMock()
	monitor := &countingMonitor{}

	memoryManager := memory.NewManager(config.Memory, &logger)
	storageManager := storage.NewManager(config.Storage, memoryManager, registry.NewMemoryRegistry(),
		monitor, afero.NewMemMapFs(), nil, &logger)
	fetch := services.NewFetchService(storageManager, &logger)
	status := services.NewStatusService(storageManager, memoryManager, fetch, &logger)

	w, err := storageManager.CreateWriter(storage.WriterContext{
		ShuffleKey:   "app-1-0",
		Location:     &protocol.PartitionLocation{ID: 1},
		CanUseMemory: true,
	})
	require.NoError(t, err)
	for i := uint32(0); i < 3; i++ {
		require.NoError(t, w.Write(protocol.EncodeBatch(0, 0, i, bytes.Repeat([]byte{'x'}, 20))))
	}
	require.True(t, memoryManager.ShouldEvict())
	_, inMemory := storageManager.Stats()
	require.Equal(t, 1, inMemory)

	manager := NewShuffleManager(config, storageManager, memoryManager, monitor, fetch, status, mock, &logger)
	manager.Start()

	mock.Add(config.Memory.CheckInterval)
	assert.Eventually(t, func() bool {
		_, inMemory := storageManager.Stats()
		return inMemory == 0
	}, time.Second, 5*time.Millisecond)
	assert.False(t, memoryManager.ShouldEvict())
	assert.Equal(t, int64(0), monitor.checks.Load())

	mock.Add(config.Device.CheckInterval)
	assert.Eventually(t, func() bool {
		return monitor.checks.Load() >= 1
	}, time.Second, 5*time.Millisecond)

	manager.Stop()
	assert.Zero(t, fetch.Streams())
}
