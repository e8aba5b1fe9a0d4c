package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/pecigonzalo/remote-shuffle/internal/memory"
	"github.com/pecigonzalo/remote-shuffle/internal/protocol"
	"github.com/pecigonzalo/remote-shuffle/internal/registry"
	"github.com/pecigonzalo/remote-shuffle/internal/shuffle"
)

var (
	// ErrNoStorageAvailable is returned when no tier can hold a new file.
	ErrNoStorageAvailable = errors.New("no storage available")
	// ErrFileNotFound is returned when looking up an unknown partition file.
	ErrFileNotFound = errors.New("partition file not found")
	// ErrNotCommitted is returned when reading a file whose writer is open.
	ErrNotCommitted = errors.New("partition file not committed")
	// ErrShuffleRemoved is the cause used when a shuffle is cleaned up.
	ErrShuffleRemoved = errors.New("shuffle removed")
)

const registryTimeout = 10 * time.Second

type createdFile struct {
	fileInfo FileInfo
	flusher  *Flusher
}

// Manager owns the storage tiers, the flushers and every partition writer of
// the worker.
type Manager struct {
	config        shuffle.StorageConfig
	memory        *memory.Manager
	registry      registry.Registry
	deviceMonitor DeviceMonitor

	fs            afero.Fs
	localFS       FileSystem
	dfs           FileSystem
	localFlushers []*Flusher
	dfsFlusher    *Flusher
	memoryBuffers *BufferPool
	nextDir       atomic.Uint64

	mu       sync.RWMutex
	writers  map[string]map[string]*PartitionDataWriter
	restored map[string]map[string]*DiskFileInfo

	// memoryMu is taken under a writer's flush lock; never acquire a writer
	// lock while holding it.
	memoryMu      sync.Mutex
	memoryWriters map[*PartitionDataWriter]struct{}

	logger zerolog.Logger
}

// NewManager builds a flusher per configured directory, plus one for the
// distributed filesystem when dfs is not nil.
func NewManager(
	config shuffle.StorageConfig,
	memoryManager *memory.Manager,
	reg registry.Registry,
	monitor DeviceMonitor,
	fs afero.Fs,
	dfs FileSystem,
	logger *zerolog.Logger,
) *Manager {
	m := &Manager{
		config:        config,
		memory:        memoryManager,
		registry:      reg,
		deviceMonitor: monitor,
		fs:            fs,
		localFS:       NewAferoFileSystem(fs),
		dfs:           dfs,
		memoryBuffers: NewBufferPool("memory"),
		writers:       make(map[string]map[string]*PartitionDataWriter),
		restored:      make(map[string]map[string]*DiskFileInfo),
		memoryWriters: make(map[*PartitionDataWriter]struct{}),
		logger:        logger.With().Str("component", "storage-manager").Logger(),
	}
	storageType := protocol.StorageLocalHDD
	if config.DiskType == "SSD" {
		storageType = protocol.StorageLocalSSD
	}
	for _, dir := range config.Dirs {
		m.localFlushers = append(m.localFlushers,
			NewLocalFlusher(dir, storageType, config.FlusherThreads, config.FlusherQueueCapacity, memoryManager, monitor, logger))
	}
	if dfs != nil {
		m.dfsFlusher = NewDFSFlusher(config.DFSFlusherThreads, config.FlusherQueueCapacity, memoryManager, logger)
	}
	return m
}

func (m *Manager) healthyFlushers() []*Flusher {
	var out []*Flusher
	for _, f := range m.localFlushers {
		if m.deviceMonitor.Healthy(f.MountPoint()) {
			out = append(out, f)
		}
	}
	return out
}

// localOrDFSAvailable reports whether a memory file has somewhere to go.
func (m *Manager) localOrDFSAvailable() bool {
	return len(m.healthyFlushers()) > 0 || m.dfs != nil
}

// createFile picks the tier of a new file: memory when allowed and there is
// room, else a healthy local directory in turn, else the distributed
// filesystem.
func (m *Manager) createFile(writerContext WriterContext, canUseMemory bool) (createdFile, error) {
	fileName := writerContext.Location.FileName()
	if canUseMemory && m.config.MemoryFileEnabled && m.memory.MemoryFileStorageAvailable() {
		return createdFile{fileInfo: newMemoryFileInfo(m.config.ChunkSize, m.memoryBuffers.Take())}, nil
	}

	if flushers := m.healthyFlushers(); len(flushers) > 0 {
		flusher := flushers[int(m.nextDir.Inc()-1)%len(flushers)]
		dir := filepath.Join(flusher.MountPoint(), writerContext.ShuffleKey)
		if err := m.fs.MkdirAll(dir, 0o755); err != nil {
			m.deviceMonitor.ReportNonCriticalError(flusher.MountPoint(), err)
			return createdFile{}, fmt.Errorf("create shuffle dir %s: %w", dir, err)
		}
		return createdFile{
			fileInfo: newDiskFileInfo(m.config.ChunkSize, filepath.Join(dir, fileName), flusher.MountPoint(), flusher.StorageType()),
			flusher:  flusher,
		}, nil
	}

	if m.dfs != nil {
		path := filepath.Join(m.config.DFS.Root, writerContext.ShuffleKey, fileName)
		return createdFile{
			fileInfo: newDiskFileInfo(m.config.ChunkSize, path, "", protocol.StorageDistributedFS),
			flusher:  m.dfsFlusher,
		}, nil
	}
	return createdFile{}, ErrNoStorageAvailable
}

// CreateWriter registers a writer for the partition replica. Reserving an
// already reserved replica returns the existing writer.
func (m *Manager) CreateWriter(writerContext WriterContext) (*PartitionDataWriter, error) {
	fileName := writerContext.Location.FileName()

	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.writers[writerContext.ShuffleKey][fileName]; ok {
		return w, nil
	}

	w, err := newPartitionDataWriter(m, writerContext)
	if err != nil {
		return nil, err
	}
	files, ok := m.writers[writerContext.ShuffleKey]
	if !ok {
		files = make(map[string]*PartitionDataWriter)
		m.writers[writerContext.ShuffleKey] = files
	}
	files[fileName] = w
	if w.isMemory.Load() {
		m.memoryMu.Lock()
		m.memoryWriters[w] = struct{}{}
		m.memoryMu.Unlock()
	}
	activeWriters.Inc()
	w.logger.Debug().Str("storage", string(w.StorageInfo().Type)).Msg("Partition writer created")
	return w, nil
}

// Writer returns the registered writer of a partition file.
func (m *Manager) Writer(shuffleKey, fileName string) (*PartitionDataWriter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.writers[shuffleKey][fileName]
	return w, ok
}

// Stats counts the registered writers and the memory-tier writers among them.
func (m *Manager) Stats() (writers, memoryWriters int) {
	m.mu.RLock()
	for _, files := range m.writers {
		writers += len(files)
	}
	m.mu.RUnlock()

	m.memoryMu.Lock()
	defer m.memoryMu.Unlock()
	return writers, len(m.memoryWriters)
}

func (m *Manager) unregisterMemoryWriter(shuffleKey, fileName string, w *PartitionDataWriter) {
	m.memoryMu.Lock()
	defer m.memoryMu.Unlock()
	if _, ok := m.memoryWriters[w]; !ok {
		return
	}
	delete(m.memoryWriters, w)
	m.logger.Debug().Str("shuffleKey", shuffleKey).Str("fileName", fileName).Msg("Memory writer unregistered")
}

// LookupFileInfo returns the committed file of a partition.
func (m *Manager) LookupFileInfo(shuffleKey, fileName string) (FileInfo, error) {
	m.mu.RLock()
	w, ok := m.writers[shuffleKey][fileName]
	restored, restoredOK := m.restored[shuffleKey][fileName]
	m.mu.RUnlock()

	switch {
	case ok:
		if !w.IsClosed() {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotCommitted, shuffleKey, fileName)
		}
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("partition file %s/%s failed: %w", shuffleKey, fileName, err)
		}
		return w.FileInfo(), nil
	case restoredOK:
		return restored, nil
	default:
		return nil, fmt.Errorf("%w: %s/%s", ErrFileNotFound, shuffleKey, fileName)
	}
}

// OpenFile looks a committed file up and pins it when it lives in memory.
// The returned function releases the pin.
func (m *Manager) OpenFile(shuffleKey, fileName string) (FileInfo, func(), error) {
	for {
		fi, err := m.LookupFileInfo(shuffleKey, fileName)
		if err != nil {
			return nil, nil, err
		}
		switch f := fi.(type) {
		case *MemoryFileInfo:
			if f.Pin() {
				return f, f.Unpin, nil
			}
			// eviction in progress, the writer is about to expose the disk file
			time.Sleep(waitInterval)
		case *DiskFileInfo:
			return f, func() {}, nil
		}
	}
}

// ReadChunk returns the bytes of one chunk.
func (m *Manager) ReadChunk(ctx context.Context, fi FileInfo, index int) ([]byte, error) {
	switch f := fi.(type) {
	case *MemoryFileInfo:
		return f.ReadChunk(index)
	case *DiskFileInfo:
		off, n, err := f.chunkRange(index)
		if err != nil {
			return nil, err
		}
		if f.Deleted() {
			return nil, fmt.Errorf("%w: %s deleted", ErrFileNotFound, f.FilePath())
		}
		if f.IsDFS() {
			if m.dfs == nil {
				return nil, fmt.Errorf("%s: distributed filesystem not configured", f.FilePath())
			}
			return m.dfs.ReadAt(ctx, f.FilePath(), off, n)
		}
		return m.localFS.ReadAt(ctx, f.FilePath(), off, n)
	default:
		return nil, fmt.Errorf("unknown file info %T", fi)
	}
}

// EvictMemoryWriters moves the largest memory files to disk until memory
// files fit their share again.
func (m *Manager) EvictMemoryWriters() {
	if !m.memory.ShouldEvict() || !m.localOrDFSAvailable() {
		return
	}

	m.memoryMu.Lock()
	writers := make([]*PartitionDataWriter, 0, len(m.memoryWriters))
	for w := range m.memoryWriters {
		writers = append(writers, w)
	}
	m.memoryMu.Unlock()

	type candidate struct {
		writer *PartitionDataWriter
		size   int64
	}
	candidates := make([]candidate, 0, len(writers))
	for _, w := range writers {
		if mf := w.MemoryFileInfo(); mf != nil {
			candidates = append(candidates, candidate{writer: w, size: mf.BytesFlushed()})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].size > candidates[j].size
	})
	for _, c := range candidates {
		if !m.memory.ShouldEvict() {
			return
		}
		if err := c.writer.Evict(c.writer.writerContext.RangeReadFilter); err != nil {
			m.logger.Warn().Err(err).Str("writer", c.writer.String()).Msg("Evict memory file failed")
		}
	}
}

// FlushOnMemoryPressure flushes the buffers of every open disk writer.
func (m *Manager) FlushOnMemoryPressure() {
	m.mu.RLock()
	var open []*PartitionDataWriter
	for _, files := range m.writers {
		for _, w := range files {
			if !w.IsClosed() && !w.isMemory.Load() {
				open = append(open, w)
			}
		}
	}
	m.mu.RUnlock()

	for _, w := range open {
		if err := w.FlushOnMemoryPressure(); err != nil {
			m.logger.Warn().Err(err).Str("writer", w.String()).Msg("Flush on memory pressure failed")
		}
	}
}

// notifyCommitted records a committed disk file when graceful shutdown is on.
func (m *Manager) notifyCommitted(shuffleKey, fileName string, fi *DiskFileInfo, producerIDs *roaring.Bitmap) {
	if !m.config.GracefulShutdown {
		return
	}
	record := registry.Record{
		ShuffleKey: shuffleKey,
		FileName:   fileName,
		Meta: registry.FileMeta{
			StorageInfo:  fi.StorageInfo(),
			ChunkOffsets: fi.ChunkOffsets(),
		},
	}
	if producerIDs != nil {
		encoded, err := producerIDs.ToBase64()
		if err == nil {
			record.Meta.ProducerBitmap = encoded
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	defer cancel()
	if err := m.registry.NotifyCommitted(ctx, record); err != nil {
		m.logger.Error().Err(err).Str("key", record.Key()).Msg("Error recording committed file")
	}
}

// Restore makes files committed before a restart readable again.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	records, err := m.registry.Recover(ctx)
	if err != nil {
		return 0, fmt.Errorf("recover committed files: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range records {
		info := record.Meta.StorageInfo
		if info.Type == protocol.StorageMemory {
			continue
		}
		fi := newDiskFileInfo(m.config.ChunkSize, info.FilePath, info.MountPoint, info.Type)
		fi.restore(record.Meta.ChunkOffsets)
		files, ok := m.restored[record.ShuffleKey]
		if !ok {
			files = make(map[string]*DiskFileInfo)
			m.restored[record.ShuffleKey] = files
		}
		files[record.FileName] = fi
	}
	m.logger.Info().Int("files", len(records)).Msg("Restored committed files")
	return len(records), nil
}

// CleanupShuffle destroys every writer of the shuffle and deletes its files.
func (m *Manager) CleanupShuffle(ctx context.Context, shuffleKey string) error {
	m.mu.Lock()
	writers := m.writers[shuffleKey]
	restored := m.restored[shuffleKey]
	delete(m.writers, shuffleKey)
	delete(m.restored, shuffleKey)
	m.mu.Unlock()

	var errs error
	for _, w := range writers {
		w.Destroy(ErrShuffleRemoved)
		activeWriters.Dec()
	}
	for _, fi := range restored {
		fs := m.localFS
		if fi.IsDFS() {
			fs = m.dfs
		}
		if fs == nil {
			continue
		}
		errs = multierr.Append(errs, fi.DeleteAllFiles(ctx, fs))
	}
	for _, f := range m.localFlushers {
		dir := filepath.Join(f.MountPoint(), shuffleKey)
		if err := m.fs.RemoveAll(dir); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	errs = multierr.Append(errs, m.registry.Forget(ctx, shuffleKey))

	m.logger.Info().
		Str("shuffleKey", shuffleKey).
		Int("writers", len(writers)).
		Int("restored", len(restored)).
		Msg("Shuffle cleaned up")
	return errs
}

// Close stops the flushers and the registry.
func (m *Manager) Close() error {
	var errs error
	for _, f := range m.localFlushers {
		errs = multierr.Append(errs, f.Stop())
	}
	if m.dfsFlusher != nil {
		errs = multierr.Append(errs, m.dfsFlusher.Stop())
	}
	errs = multierr.Append(errs, m.registry.Close())
	m.logger.Info().Msg("Storage manager closed")
	return errs
}
