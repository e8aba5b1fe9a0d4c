package storage

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pecigonzalo/remote-shuffle/internal/memory"
	"github.com/pecigonzalo/remote-shuffle/internal/protocol"
)

// Flusher runs flush tasks on a fixed set of goroutines. Each goroutine owns a
// bounded queue, so the tasks of one writer, which always use the same queue,
// are written in order.
type Flusher struct {
	name        string
	mountPoint  string
	storageType protocol.StorageType

	queues  []chan FlushTask
	pool    *BufferPool
	memory  *memory.Manager
	onError func(err error)

	mu      sync.RWMutex
	stopped bool
	group   *errgroup.Group

	logger zerolog.Logger
}

// NewLocalFlusher returns a flusher bound to one local mount point. Failed
// tasks are reported to the device monitor as non critical errors.
func NewLocalFlusher(
	mountPoint string,
	storageType protocol.StorageType,
	threads, queueCapacity int,
	memoryManager *memory.Manager,
	monitor DeviceMonitor,
	logger *zerolog.Logger,
) *Flusher {
	f := newFlusher(mountPoint, threads, queueCapacity, memoryManager, logger)
	f.mountPoint = mountPoint
	f.storageType = storageType
	f.onError = func(err error) {
		monitor.ReportNonCriticalError(mountPoint, err)
	}
	return f
}

// NewDFSFlusher returns a flusher writing to the distributed filesystem.
func NewDFSFlusher(threads, queueCapacity int, memoryManager *memory.Manager, logger *zerolog.Logger) *Flusher {
	f := newFlusher("dfs", threads, queueCapacity, memoryManager, logger)
	f.storageType = protocol.StorageDistributedFS
	return f
}

func newFlusher(name string, threads, queueCapacity int, memoryManager *memory.Manager, logger *zerolog.Logger) *Flusher {
	threads = max(threads, 1)
	f := &Flusher{
		name:   name,
		queues: make([]chan FlushTask, threads),
		pool:   NewBufferPool(name),
		memory: memoryManager,
		group:  &errgroup.Group{},
		logger: logger.With().Str("component", "flusher").Str("flusher", name).Logger(),
	}
	for i := range f.queues {
		queue := make(chan FlushTask, queueCapacity)
		f.queues[i] = queue
		f.group.Go(func() error {
			f.run(queue)
			return nil
		})
	}
	return f
}

func (f *Flusher) Name() string {
	return f.name
}

func (f *Flusher) MountPoint() string {
	return f.mountPoint
}

func (f *Flusher) StorageType() protocol.StorageType {
	return f.storageType
}

// WorkerIndex picks a queue for a new writer.
func (f *Flusher) WorkerIndex() int {
	return rand.Intn(len(f.queues))
}

// TakeBuffer checks a buffer out of the flusher's pool.
func (f *Flusher) TakeBuffer() *CompositeBuffer {
	return f.pool.Take()
}

// AddTask queues task on the given worker. It returns false when the queue
// stayed full for timeout or the flusher is stopped.
func (f *Flusher) AddTask(task FlushTask, timeout time.Duration, workerIndex int) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.stopped {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f.queues[workerIndex%len(f.queues)] <- task:
		return true
	case <-timer.C:
		flushTimeouts.WithLabelValues(f.name).Inc()
		f.logger.Warn().Dur("timeout", timeout).Int("worker", workerIndex).Msg("Flush queue full")
		return false
	}
}

func (f *Flusher) run(queue <-chan FlushTask) {
	for task := range queue {
		f.process(task)
	}
}

func (f *Flusher) process(task FlushTask) {
	notifier := task.Notifier()
	buffer := task.Buffer()
	n := buffer.Readable()

	if !notifier.HasError() {
		start := time.Now()
		err := task.Flush(context.Background())
		flushDuration.WithLabelValues(f.name).Observe(time.Since(start).Seconds())
		if err != nil {
			flushErrors.WithLabelValues(f.name).Inc()
			f.logger.Error().Err(err).Int("bytes", n).Msg("Flush task failed")
			notifier.SetError(err)
			if f.onError != nil {
				f.onError(err)
			}
		} else {
			flushedBytes.WithLabelValues(f.name).Add(float64(n))
		}
	}

	buffer.Release()
	f.memory.ReleaseDiskBuffer(int64(n))
	notifier.DecrementPending()
}

// Stop drains the queues and waits for the flush goroutines.
func (f *Flusher) Stop() error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil
	}
	f.stopped = true
	for _, queue := range f.queues {
		close(queue)
	}
	f.mu.Unlock()

	err := f.group.Wait()
	f.logger.Info().Msg("Flusher stopped")
	return err
}
