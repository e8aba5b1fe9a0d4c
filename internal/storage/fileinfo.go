package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/pecigonzalo/remote-shuffle/internal/protocol"
)

// ErrFileEvicted is returned when reading a memory file that moved to disk.
var ErrFileEvicted = errors.New("memory file evicted")

// FileInfo describes where a partition file lives and how it is chunked. It is
// either a *MemoryFileInfo or a *DiskFileInfo.
type FileInfo interface {
	FileLength() int64
	NumChunks() int
	ChunkOffsets() []int64
	StorageInfo() protocol.StorageInfo

	fileInfo()
}

var (
	_ FileInfo = (*MemoryFileInfo)(nil)
	_ FileInfo = (*DiskFileInfo)(nil)
)

// chunkIndex is the append-only list of chunk boundaries. The first offset is
// always 0 and the last is the file length once sealed.
type chunkIndex struct {
	mu           sync.RWMutex
	chunkSize    int64
	offsets      []int64
	bytesFlushed int64
}

func (c *chunkIndex) init(chunkSize int64) {
	c.chunkSize = chunkSize
	c.offsets = []int64{0}
}

// UpdateBytesFlushed accounts n more bytes and closes a chunk once it reaches
// the chunk size.
func (c *chunkIndex) UpdateBytesFlushed(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytesFlushed += n
	if c.bytesFlushed >= c.offsets[len(c.offsets)-1]+c.chunkSize {
		c.offsets = append(c.offsets, c.bytesFlushed)
	}
}

// Seal closes the last partial chunk.
func (c *chunkIndex) Seal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bytesFlushed > c.offsets[len(c.offsets)-1] {
		c.offsets = append(c.offsets, c.bytesFlushed)
	}
}

func (c *chunkIndex) BytesFlushed() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bytesFlushed
}

func (c *chunkIndex) FileLength() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offsets[len(c.offsets)-1]
}

func (c *chunkIndex) NumChunks() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.offsets) - 1
}

func (c *chunkIndex) ChunkOffsets() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]int64, len(c.offsets))
	copy(out, c.offsets)
	return out
}

func (c *chunkIndex) chunkRange(index int) (int64, int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index < 0 || index >= len(c.offsets)-1 {
		return 0, 0, fmt.Errorf("chunk %d out of range, file has %d chunks", index, len(c.offsets)-1)
	}
	return c.offsets[index], c.offsets[index+1] - c.offsets[index], nil
}

func (c *chunkIndex) restore(offsets []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(offsets) == 0 {
		offsets = []int64{0}
	}
	c.offsets = append([]int64(nil), offsets...)
	c.bytesFlushed = offsets[len(offsets)-1]
}

// MemoryFileInfo is a partition file held in a memory buffer. Readers pin it;
// a pinned file is not evicted.
type MemoryFileInfo struct {
	chunkIndex

	mu        sync.Mutex
	buffer    *CompositeBuffer
	readers   int
	evicting  bool
	evicted   bool
	onEvicted func()
	fireOnce  sync.Once
}

func newMemoryFileInfo(chunkSize int64, buffer *CompositeBuffer) *MemoryFileInfo {
	f := &MemoryFileInfo{buffer: buffer}
	f.init(chunkSize)
	return f
}

func (f *MemoryFileInfo) fileInfo() {}

func (f *MemoryFileInfo) StorageInfo() protocol.StorageInfo {
	return protocol.StorageInfo{Type: protocol.StorageMemory}
}

func (f *MemoryFileInfo) append(data []byte) {
	f.mu.Lock()
	f.buffer.AddComponent(data)
	f.mu.Unlock()
	f.UpdateBytesFlushed(int64(len(data)))
}

// Pin registers a reader. It fails once eviction started.
func (f *MemoryFileInfo) Pin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.evicting || f.evicted {
		return false
	}
	f.readers++
	return true
}

// Unpin releases a reader and runs the evicted callback if it was waiting for
// the last one.
func (f *MemoryFileInfo) Unpin() {
	f.mu.Lock()
	f.readers--
	fire := f.readers == 0 && f.evicted && f.onEvicted != nil
	f.mu.Unlock()
	if fire {
		f.fireOnce.Do(f.onEvicted)
	}
}

func (f *MemoryFileInfo) HasReader() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readers > 0
}

func (f *MemoryFileInfo) Evicted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evicted
}

func (f *MemoryFileInfo) beginEvict() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readers > 0 || f.evicting || f.evicted || f.buffer == nil {
		return false
	}
	f.evicting = true
	return true
}

func (f *MemoryFileInfo) abortEvict() {
	f.mu.Lock()
	f.evicting = false
	f.mu.Unlock()
}

// sortBuffer orders the buffered batches by producer id.
func (f *MemoryFileInfo) sortBuffer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sorted, err := protocol.SortBatchesByProducer(f.buffer.Bytes())
	if err != nil {
		return err
	}
	f.buffer.Replace(sorted)
	return nil
}

func (f *MemoryFileInfo) detachBuffer() *CompositeBuffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.buffer
	f.buffer = nil
	return b
}

// SetEvicted marks the file as moved to disk. fn runs exactly once, as soon as
// no reader holds the file.
func (f *MemoryFileInfo) SetEvicted(fn func()) {
	f.mu.Lock()
	f.evicted = true
	f.evicting = false
	f.onEvicted = fn
	fire := f.readers == 0
	f.mu.Unlock()
	if fire {
		f.fireOnce.Do(fn)
	}
}

// ReadChunk copies the bytes of chunk index.
func (f *MemoryFileInfo) ReadChunk(index int) ([]byte, error) {
	off, n, err := f.chunkRange(index)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buffer == nil {
		return nil, ErrFileEvicted
	}
	return f.buffer.ReadRange(off, n)
}

// release frees the buffer and returns the bytes it held.
func (f *MemoryFileInfo) release() int64 {
	b := f.detachBuffer()
	if b == nil {
		return 0
	}
	n := int64(b.Readable())
	b.Release()
	return n
}

// DiskFileInfo is a partition file on a local disk or the distributed
// filesystem.
type DiskFileInfo struct {
	chunkIndex

	path        string
	mountPoint  string
	storageType protocol.StorageType
	deleted     atomic.Bool
	deleteOnce  sync.Once
}

func newDiskFileInfo(chunkSize int64, path, mountPoint string, storageType protocol.StorageType) *DiskFileInfo {
	f := &DiskFileInfo{
		path:        path,
		mountPoint:  mountPoint,
		storageType: storageType,
	}
	f.init(chunkSize)
	return f
}

func (f *DiskFileInfo) fileInfo() {}

func (f *DiskFileInfo) FilePath() string {
	return f.path
}

func (f *DiskFileInfo) MountPoint() string {
	return f.mountPoint
}

func (f *DiskFileInfo) IsDFS() bool {
	return f.storageType == protocol.StorageDistributedFS
}

func (f *DiskFileInfo) Deleted() bool {
	return f.deleted.Load()
}

func (f *DiskFileInfo) StorageInfo() protocol.StorageInfo {
	return protocol.StorageInfo{
		Type:       f.storageType,
		MountPoint: f.mountPoint,
		FilePath:   f.path,
	}
}

// DeleteAllFiles removes the data file and its index. Only the first call
// touches the filesystem.
func (f *DiskFileInfo) DeleteAllFiles(ctx context.Context, fs FileSystem) error {
	var err error
	f.deleteOnce.Do(func() {
		f.deleted.Store(true)
		err = multierr.Combine(
			fs.Remove(ctx, f.path),
			fs.Remove(ctx, IndexPath(f.path)),
		)
	})
	return err
}
