// Package workers defines the background loops of the shuffle worker
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/pecigonzalo/remote-shuffle/internal/memory"
	"github.com/pecigonzalo/remote-shuffle/internal/services"
	"github.com/pecigonzalo/remote-shuffle/internal/shuffle"
	"github.com/pecigonzalo/remote-shuffle/internal/storage"
)

const restoreTimeout = time.Minute

// Worker interface exposing main operations on shuffle workers
type Worker interface {
	Start()
	Stop()
}

// ShuffleManager drives the memory and device checks of the worker and owns
// the shutdown of its services.
type ShuffleManager struct {
	config        *shuffle.WorkerConfig
	storage       *storage.Manager
	memory        *memory.Manager
	deviceMonitor storage.DeviceMonitor
	fetchService  services.FetchService
	statusService services.StatusService
	clock         clock.Clock
	stop          chan struct{}
	syncStop      sync.WaitGroup
	logger        *zerolog.Logger
}

// NewShuffleManager returns an instance of the shuffle manager worker
func NewShuffleManager(config shuffle.WorkerConfig,
	storageManager *storage.Manager, memoryManager *memory.Manager, deviceMonitor storage.DeviceMonitor,
	fetchService services.FetchService, statusService services.StatusService,
	clk clock.Clock, logger *zerolog.Logger) Worker {
	if clk == nil {
		clk = clock.New()
	}
	managerLogger := logger.With().Str("component", "shuffle-manager").Logger()
	return &ShuffleManager{
		config:        &config,
		storage:       storageManager,
		memory:        memoryManager,
		deviceMonitor: deviceMonitor,
		fetchService:  fetchService,
		statusService: statusService,
		clock:         clk,
		logger:        &managerLogger,
	}
}

// Start restores the committed files and starts the check loops
func (sm *ShuffleManager) Start() {
	sm.logger.Info().Msg("Starting shuffle manager")

	sm.stop = make(chan struct{})
	sm.statusService.Open()

	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	if _, err := sm.storage.Restore(ctx); err != nil {
		sm.logger.Error().Err(err).Msg("Error restoring committed files")
	}
	cancel()

	sm.logger.Info().Dur("interval", sm.config.Memory.CheckInterval).Msg("Running memory check loop")
	sm.loop(sm.config.Memory.CheckInterval, sm.checkMemory)

	if sm.config.Device.Enabled {
		sm.logger.Info().Dur("interval", sm.config.Device.CheckInterval).Msg("Running device check loop")
		sm.loop(sm.config.Device.CheckInterval, func() {
			ctx, cancel := context.WithTimeout(context.Background(), sm.config.Device.CheckInterval)
			defer cancel()
			sm.deviceMonitor.Check(ctx)
		})
	}
}

// Stop stops the check loops and closes the services
func (sm *ShuffleManager) Stop() {
	sm.logger.Info().Msg("Stopping shuffle manager")

	// ask to stop the ticker loops and wait
	close(sm.stop)
	sm.syncStop.Wait()

	sm.fetchService.Close()
	sm.statusService.Close()
	if err := sm.storage.Close(); err != nil {
		sm.logger.Error().Err(err).Msg("Error closing storage")
	}

	sm.logger.Info().Msg("Shuffle manager closed")
}

func (sm *ShuffleManager) loop(interval time.Duration, check func()) {
	sm.syncStop.Add(1)
	ticker := sm.clock.Ticker(interval)
	go func() {
		defer sm.syncStop.Done()
		for {
			select {
			case <-ticker.C:
				check()
			case <-sm.stop:
				ticker.Stop()
				return
			}
		}
	}()
}

func (sm *ShuffleManager) checkMemory() {
	sm.storage.EvictMemoryWriters()
	if sm.memory.State() == memory.PushPaused {
		sm.storage.FlushOnMemoryPressure()
	}
}
