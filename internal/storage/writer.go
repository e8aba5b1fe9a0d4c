package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"go.uber.org/atomic"

	"github.com/pecigonzalo/remote-shuffle/internal/memory"
	"github.com/pecigonzalo/remote-shuffle/internal/protocol"
	"github.com/pecigonzalo/remote-shuffle/internal/shuffle"
)

var (
	// ErrAlreadyClosed is returned when writing to or closing a closed writer.
	ErrAlreadyClosed = errors.New("partition writer already closed")
	// ErrWaitTimeout is returned when pending writes or flushes do not settle
	// within the writer close timeout.
	ErrWaitTimeout = errors.New("wait pending actions timeout")
	// ErrAddTaskTimeout is returned when a flush task could not be queued.
	ErrAddTaskTimeout = errors.New("add flush task timeout")
)

const waitInterval = 5 * time.Millisecond

// WriterContext identifies the partition replica a writer persists.
type WriterContext struct {
	ShuffleKey      string
	Location        *protocol.PartitionLocation
	RangeReadFilter bool
	// CanUseMemory allows the file to start in the memory tier.
	CanUseMemory bool
}

var _ DeviceObserver = (*PartitionDataWriter)(nil)

// PartitionDataWriter accumulates pushed batches for one partition replica and
// persists them through flush tasks. A memory file is moved to disk when it
// outgrows its limit. Once a flush fails the writer is poisoned for good.
type PartitionDataWriter struct {
	manager       *Manager
	config        shuffle.StorageConfig
	writerContext WriterContext
	fileName      string
	memory        *memory.Manager
	deviceMonitor DeviceMonitor

	// mu serializes Close, Evict and Destroy.
	mu sync.Mutex

	// flushMu guards the fields below.
	flushMu           sync.Mutex
	buffer            *CompositeBuffer
	memoryFile        *MemoryFileInfo
	diskFile          *DiskFileInfo
	file              afero.File
	flusher           *Flusher
	flushWorkerIndex  int
	flusherBufferSize int64
	dfsOffset         int64
	producerIDs       *roaring.Bitmap
	evictErr          error

	isMemory      atomic.Bool
	closed        atomic.Bool
	destroyed     bool
	pendingWrites atomic.Int64
	notifier      FlushNotifier

	logger zerolog.Logger
}

func newPartitionDataWriter(m *Manager, writerContext WriterContext) (*PartitionDataWriter, error) {
	w := &PartitionDataWriter{
		manager:       m,
		config:        m.config,
		writerContext: writerContext,
		fileName:      writerContext.Location.FileName(),
		memory:        m.memory,
		deviceMonitor: m.deviceMonitor,
	}
	w.logger = m.logger.With().
		Str("component", "partition-writer").
		Str("shuffleKey", writerContext.ShuffleKey).
		Str("fileName", w.fileName).
		Logger()
	if writerContext.RangeReadFilter {
		w.producerIDs = roaring.New()
	}

	created, err := m.createFile(writerContext, writerContext.CanUseMemory)
	if err != nil {
		return nil, fmt.Errorf("create file for %s: %w", writerContext.Location, err)
	}
	switch fi := created.fileInfo.(type) {
	case *MemoryFileInfo:
		w.memoryFile = fi
		w.isMemory.Store(true)
	case *DiskFileInfo:
		w.diskFile = fi
		w.flusher = created.flusher
		if err := w.initDiskChannel(); err != nil {
			return nil, err
		}
		w.buffer = w.flusher.TakeBuffer()
	}
	return w, nil
}

// initDiskChannel opens the local file or prepares the distributed filesystem
// file. Caller holds flushMu or owns the writer exclusively.
func (w *PartitionDataWriter) initDiskChannel() error {
	w.flushWorkerIndex = w.flusher.WorkerIndex()
	if w.diskFile.IsDFS() {
		w.flusherBufferSize = w.config.DFSFlusherBufferSize
		w.dfsOffset = 0
		return w.manager.dfs.Create(context.Background(), w.diskFile.FilePath())
	}

	w.flusherBufferSize = w.config.FlusherBufferSize
	f, err := w.manager.fs.OpenFile(w.diskFile.FilePath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.diskFile.FilePath(), err)
	}
	w.file = f
	w.deviceMonitor.RegisterObserver(w.diskFile.MountPoint(), w)
	return nil
}

func (w *PartitionDataWriter) String() string {
	return w.fileName + "-partition-writer"
}

func (w *PartitionDataWriter) alreadyClosed() error {
	return fmt.Errorf("%w: %s", ErrAlreadyClosed, w.fileName)
}

// Write appends one push, made of whole framed batches. Writes to a poisoned
// writer are dropped silently.
func (w *PartitionDataWriter) Write(data []byte) error {
	w.pendingWrites.Inc()
	defer w.pendingWrites.Dec()

	if w.closed.Load() {
		w.logger.Warn().Msg("Write to closed partition writer")
		return w.alreadyClosed()
	}
	if w.notifier.HasError() {
		return nil
	}

	var producerIDs []uint32
	if w.writerContext.RangeReadFilter {
		_ = protocol.ScanBatches(data, func(h protocol.BatchHeader, _ []byte) error {
			producerIDs = append(producerIDs, h.ProducerID)
			return nil
		})
	}

	n := int64(len(data))
	accountedInMemory := w.isMemory.Load()
	if accountedInMemory {
		w.memory.IncrementMemoryFileStorage(n)
	} else {
		w.memory.IncrementDiskBuffer(n)
	}

	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	if w.closed.Load() {
		w.releaseAccounting(accountedInMemory, n)
		return w.alreadyClosed()
	}
	if w.notifier.HasError() {
		w.releaseAccounting(accountedInMemory, n)
		return nil
	}
	if w.producerIDs != nil {
		w.producerIDs.AddMany(producerIDs)
	}

	if w.memoryFile != nil && w.memoryFile.BytesFlushed() > w.config.MemoryFileMaxSize && w.manager.localOrDFSAvailable() {
		w.logger.Debug().Int64("bytes", w.memoryFile.BytesFlushed()).Msg("Evicting memory file")
		if err := w.evictLocked(false); err != nil {
			w.releaseAccounting(accountedInMemory, n)
			return err
		}
	}

	if w.memoryFile != nil {
		w.memoryFile.append(data)
	} else {
		if accountedInMemory {
			// the file moved to disk while this write was accounted in memory
			w.memory.ReleaseMemoryFileStorage(n)
			w.memory.IncrementDiskBuffer(n)
		}
		readable := int64(w.buffer.Readable())
		if readable != 0 && readable+n >= w.flusherBufferSize {
			if err := w.flushLocked(false); err != nil {
				w.memory.ReleaseDiskBuffer(n)
				return err
			}
		}
		w.buffer.AddComponent(data)
	}
	pushedBytes.Add(float64(n))
	return nil
}

func (w *PartitionDataWriter) releaseAccounting(inMemory bool, n int64) {
	if inMemory {
		w.memory.ReleaseMemoryFileStorage(n)
	} else {
		w.memory.ReleaseDiskBuffer(n)
	}
}

// Flush dispatches the buffered bytes of a disk writer. Memory writers have
// nothing to flush.
func (w *PartitionDataWriter) Flush(finalFlush bool) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()
	return w.flushLocked(finalFlush)
}

// FlushOnMemoryPressure releases buffered bytes early.
func (w *PartitionDataWriter) FlushOnMemoryPressure() error {
	return w.Flush(false)
}

func (w *PartitionDataWriter) flushLocked(finalFlush bool) error {
	if w.buffer == nil || w.memoryFile != nil {
		return nil
	}
	n := w.buffer.Readable()
	if n == 0 {
		return nil
	}
	if err := w.notifier.Err(); err != nil {
		return err
	}

	if err := w.dispatchLocked(w.buffer); err != nil {
		w.buffer = nil
		return err
	}
	w.buffer = nil
	w.diskFile.UpdateBytesFlushed(int64(n))
	if !finalFlush {
		w.buffer = w.flusher.TakeBuffer()
	}
	return nil
}

// evictFlushLocked replays a memory buffer into the new disk file. Chunk
// boundaries are rebuilt per batch since the buffer may have been sorted.
func (w *PartitionDataWriter) evictFlushLocked(buffer *CompositeBuffer, finalFlush bool) error {
	n := buffer.Readable()
	if n > 0 {
		if err := w.notifier.Err(); err != nil {
			buffer.Release()
			w.memory.ReleaseMemoryFileStorage(int64(n))
			return err
		}
		var sizes []int64
		err := protocol.ScanBatches(buffer.Bytes(), func(h protocol.BatchHeader, _ []byte) error {
			sizes = append(sizes, int64(h.FramedSize()))
			return nil
		})
		if err != nil {
			buffer.Release()
			w.memory.ReleaseMemoryFileStorage(int64(n))
			err = fmt.Errorf("scan memory file for eviction: %w", err)
			w.notifier.SetError(err)
			return err
		}

		w.memory.ReleaseMemoryFileStorage(int64(n))
		w.memory.IncrementDiskBuffer(int64(n))
		if err := w.dispatchLocked(buffer); err != nil {
			return err
		}
		for _, size := range sizes {
			w.diskFile.UpdateBytesFlushed(size)
		}
	} else {
		buffer.Release()
	}
	if !finalFlush {
		w.buffer = w.flusher.TakeBuffer()
	}
	return nil
}

// dispatchLocked hands buffer to the flusher. The buffer is owned by the task
// from here on, even when queuing fails.
func (w *PartitionDataWriter) dispatchLocked(buffer *CompositeBuffer) error {
	var task FlushTask
	if w.file != nil {
		task = NewLocalFlushTask(buffer, w.file, &w.notifier)
	} else {
		task = NewDFSFlushTask(buffer, w.manager.dfs, w.diskFile.FilePath(), w.dfsOffset, &w.notifier)
		w.dfsOffset += int64(buffer.Readable())
	}

	w.notifier.IncrementPending()
	if !w.flusher.AddTask(task, w.config.FlushTaskTimeout, w.flushWorkerIndex) {
		n := buffer.Readable()
		buffer.Release()
		w.memory.ReleaseDiskBuffer(int64(n))
		w.notifier.DecrementPending()
		w.notifier.SetError(ErrAddTaskTimeout)
		return ErrAddTaskTimeout
	}
	return nil
}

// Evict moves a memory file to local disk or the distributed filesystem. It is
// a no-op for disk writers and while a reader holds the memory file.
func (w *PartitionDataWriter) Evict(needSort bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.flushMu.Lock()
	defer w.flushMu.Unlock()
	return w.evictLocked(needSort)
}

func (w *PartitionDataWriter) evictLocked(needSort bool) error {
	if w.memoryFile == nil || w.evictErr != nil {
		return nil
	}
	if !w.memoryFile.beginEvict() {
		return nil
	}
	if needSort {
		if err := w.memoryFile.sortBuffer(); err != nil {
			w.logger.Warn().Err(err).Msg("Unable to sort memory file, evicting unsorted")
		}
	}

	created, err := w.manager.createFile(w.writerContext, false)
	if err != nil {
		w.memoryFile.abortEvict()
		w.evictErr = fmt.Errorf("create disk file for eviction failed: %w", err)
		w.notifier.SetError(w.evictErr)
		return w.evictErr
	}
	diskFile, ok := created.fileInfo.(*DiskFileInfo)
	if !ok {
		w.memoryFile.abortEvict()
		w.evictErr = errors.New("create disk file for eviction returned a memory file")
		w.notifier.SetError(w.evictErr)
		return w.evictErr
	}

	memoryFile := w.memoryFile
	w.diskFile = diskFile
	w.flusher = created.flusher
	if err := w.initDiskChannel(); err != nil {
		memoryFile.abortEvict()
		w.diskFile = nil
		w.flusher = nil
		w.evictErr = err
		w.notifier.SetError(err)
		return err
	}
	w.memoryFile = nil
	w.isMemory.Store(false)

	closed := w.closed.Load()
	err = w.evictFlushLocked(memoryFile.detachBuffer(), closed)
	memoryFile.SetEvicted(func() {
		w.manager.unregisterMemoryWriter(w.writerContext.ShuffleKey, w.fileName, w)
	})
	if err != nil {
		return err
	}
	evictedFiles.Inc()
	w.logger.Debug().Str("path", diskFile.FilePath()).Msg("Memory file evicted")

	if closed {
		if err := w.waitOnNoPending(w.notifier.Pending); err != nil {
			return err
		}
		w.finishDiskFile()
		if !diskFile.IsDFS() {
			w.deviceMonitor.UnregisterObserver(diskFile.MountPoint(), w)
		}
		w.manager.notifyCommitted(w.writerContext.ShuffleKey, w.fileName, diskFile, w.producerIDs)
	}
	return nil
}

// waitOnNoPending polls counter until it reaches zero. A poisoned notifier
// aborts the wait, a timeout poisons it.
func (w *PartitionDataWriter) waitOnNoPending(counter func() int64) error {
	deadline := time.Now().Add(w.config.WriterCloseTimeout)
	for counter() > 0 && time.Now().Before(deadline) {
		if err := w.notifier.Err(); err != nil {
			return err
		}
		time.Sleep(waitInterval)
	}
	if counter() > 0 {
		w.notifier.SetError(ErrWaitTimeout)
		return ErrWaitTimeout
	}
	return w.notifier.Err()
}

func (w *PartitionDataWriter) closeChannelLocked() {
	if w.file == nil {
		return
	}
	if err := w.file.Close(); err != nil {
		w.logger.Warn().Err(err).Msg("Close channel failed")
	}
	w.file = nil
}

// finishDiskFile closes the channel, seals the chunk index and stores it next
// to distributed filesystem files.
func (w *PartitionDataWriter) finishDiskFile() {
	w.closeChannelLocked()
	w.diskFile.Seal()
	if w.diskFile.IsDFS() {
		index := EncodeChunkIndex(w.diskFile.ChunkOffsets())
		if err := w.manager.dfs.WriteFile(context.Background(), IndexPath(w.diskFile.FilePath()), index); err != nil {
			w.logger.Error().Err(err).Msg("Write chunk index failed")
			w.notifier.SetError(err)
		}
	}
}

// Close waits for in-flight writes, flushes what is left, waits for the flush
// tasks and seals the file. It returns the committed file length.
func (w *PartitionDataWriter) Close() (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed.Load() {
		w.logger.Error().Msg("Close of closed partition writer")
		return 0, w.alreadyClosed()
	}

	err := w.waitOnNoPending(w.pendingWrites.Load)
	if err == nil {
		w.closed.Store(true)
		w.flushMu.Lock()
		err = w.flushLocked(true)
		w.flushMu.Unlock()
	}
	if err == nil {
		err = w.waitOnNoPending(w.notifier.Pending)
	}

	w.flushMu.Lock()
	defer w.flushMu.Unlock()
	w.returnBufferLocked()
	if w.diskFile == nil {
		w.memoryFile.Seal()
		if err != nil {
			return 0, err
		}
		return w.memoryFile.FileLength(), nil
	}

	if err == nil {
		w.finishDiskFile()
		err = w.notifier.Err()
	} else {
		w.closeChannelLocked()
	}
	if !w.diskFile.IsDFS() {
		w.deviceMonitor.UnregisterObserver(w.diskFile.MountPoint(), w)
	}
	if err != nil {
		return 0, err
	}
	w.manager.notifyCommitted(w.writerContext.ShuffleKey, w.fileName, w.diskFile, w.producerIDs)
	return w.diskFile.FileLength(), nil
}

// returnBufferLocked gives an unflushed disk buffer back to its pool.
func (w *PartitionDataWriter) returnBufferLocked() {
	if w.buffer == nil {
		return
	}
	n := w.buffer.Readable()
	w.buffer.Release()
	w.buffer = nil
	w.memory.ReleaseDiskBuffer(int64(n))
}

// Destroy tears the writer down without flushing and deletes its files. It is
// safe to call more than once.
func (w *PartitionDataWriter) Destroy(cause error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	if !w.closed.Load() {
		w.closed.Store(true)
		w.notifier.SetError(cause)
		w.returnBufferLocked()
		w.closeChannelLocked()
	}

	if w.destroyed {
		return
	}
	w.destroyed = true
	w.logger.Warn().AnErr("cause", cause).Msg("Destroying partition writer")

	if w.memoryFile != nil {
		w.memory.ReleaseMemoryFileStorage(w.memoryFile.release())
		w.manager.unregisterMemoryWriter(w.writerContext.ShuffleKey, w.fileName, w)
		return
	}
	fs := w.manager.localFS
	if w.diskFile.IsDFS() {
		fs = w.manager.dfs
	}
	if err := w.diskFile.DeleteAllFiles(context.Background(), fs); err != nil {
		w.logger.Warn().Err(err).Msg("Delete files failed")
	}
	if !w.diskFile.IsDFS() {
		w.deviceMonitor.UnregisterObserver(w.diskFile.MountPoint(), w)
	}
}

func (w *PartitionDataWriter) IsClosed() bool {
	return w.closed.Load()
}

// Error returns the error that poisoned the writer, if any.
func (w *PartitionDataWriter) Error() error {
	return w.notifier.Err()
}

// FileInfo returns the file currently backing the writer.
func (w *PartitionDataWriter) FileInfo() FileInfo {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()
	if w.memoryFile != nil {
		return w.memoryFile
	}
	return w.diskFile
}

// MemoryFileInfo returns the memory file, or nil once the writer is on disk.
func (w *PartitionDataWriter) MemoryFileInfo() *MemoryFileInfo {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()
	return w.memoryFile
}

func (w *PartitionDataWriter) StorageInfo() protocol.StorageInfo {
	return w.FileInfo().StorageInfo()
}

// ProducerBitmap returns a copy of the producer ids seen, or nil when range
// read filtering is off.
func (w *PartitionDataWriter) ProducerBitmap() *roaring.Bitmap {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()
	if w.producerIDs == nil {
		return nil
	}
	return w.producerIDs.Clone()
}

// NeedHardSplitForMemoryStorage reports whether a memory writer has outgrown
// memory with nowhere to evict to.
func (w *PartitionDataWriter) NeedHardSplitForMemoryStorage() bool {
	memoryFile := w.MemoryFileInfo()
	if memoryFile == nil {
		return false
	}
	return !w.manager.localOrDFSAvailable() &&
		(memoryFile.BytesFlushed() > w.config.MemoryFileMaxSize || !w.memory.MemoryFileStorageAvailable())
}

func (w *PartitionDataWriter) NotifyError(mountPoint string, err error) {
	w.Destroy(fmt.Errorf("destroy %s by device error on %s: %w", w, mountPoint, err))
}

func (w *PartitionDataWriter) NotifyHighDiskUsage(mountPoint string) {
	w.logger.Debug().Str("mountPoint", mountPoint).Msg("High disk usage")
}

func (w *PartitionDataWriter) NotifyHealthy(mountPoint string) {
	w.logger.Debug().Str("mountPoint", mountPoint).Msg("Device healthy")
}

func (w *PartitionDataWriter) NotifyNonCriticalError(mountPoint string, err error) {
	w.logger.Debug().Err(err).Str("mountPoint", mountPoint).Msg("Non critical device error")
}
