package reader

import (
	"context"
	"fmt"
	"time"

	"github.com/pecigonzalo/remote-shuffle/internal/client"
	"github.com/pecigonzalo/remote-shuffle/internal/protocol"
	"github.com/pecigonzalo/remote-shuffle/internal/storage"
)

const closeStreamTimeout = 10 * time.Second

// PartitionReader returns the chunks of one partition replica in order.
type PartitionReader interface {
	HasNext() bool
	Next(ctx context.Context) ([]byte, error)
	Close() error
	Location() *protocol.PartitionLocation
}

var (
	_ PartitionReader = (*WorkerPartitionReader)(nil)
	_ PartitionReader = (*DFSPartitionReader)(nil)
)

// WorkerPartitionReader fetches chunks from the worker holding the file,
// through a stream opened on that worker.
type WorkerPartitionReader struct {
	client   client.ShuffleClient
	location *protocol.PartitionLocation
	handle   client.StreamHandle
	returned int
	closed   bool
}

func NewWorkerPartitionReader(ctx context.Context, c client.ShuffleClient, shuffleKey string, loc *protocol.PartitionLocation) (*WorkerPartitionReader, error) {
	handle, err := c.OpenStream(ctx, loc, shuffleKey)
	if err != nil {
		return nil, fmt.Errorf("open stream for %s: %w", loc, err)
	}
	return &WorkerPartitionReader{client: c, location: loc, handle: handle}, nil
}

func (r *WorkerPartitionReader) HasNext() bool {
	return r.returned < r.handle.NumChunks
}

func (r *WorkerPartitionReader) Next(ctx context.Context) ([]byte, error) {
	chunk, err := r.client.FetchChunk(ctx, r.location, r.handle.StreamID, r.returned)
	if err != nil {
		return nil, err
	}
	r.returned++
	return chunk, nil
}

func (r *WorkerPartitionReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	ctx, cancel := context.WithTimeout(context.Background(), closeStreamTimeout)
	defer cancel()
	return r.client.CloseStream(ctx, r.location, r.handle.StreamID)
}

func (r *WorkerPartitionReader) Location() *protocol.PartitionLocation {
	return r.location
}

// DFSPartitionReader reads a committed file straight from the distributed
// filesystem, using the chunk index stored next to it.
type DFSPartitionReader struct {
	fs       storage.FileSystem
	location *protocol.PartitionLocation
	offsets  []int64
	next     int
}

func NewDFSPartitionReader(ctx context.Context, fs storage.FileSystem, loc *protocol.PartitionLocation) (*DFSPartitionReader, error) {
	path := loc.StorageInfo.FilePath
	data, err := fs.ReadFile(ctx, storage.IndexPath(path))
	if err != nil {
		return nil, fmt.Errorf("read chunk index of %s: %w", path, err)
	}
	offsets, err := storage.DecodeChunkIndex(data)
	if err != nil {
		return nil, fmt.Errorf("decode chunk index of %s: %w", path, err)
	}
	return &DFSPartitionReader{fs: fs, location: loc, offsets: offsets}, nil
}

func (r *DFSPartitionReader) HasNext() bool {
	return r.next < len(r.offsets)-1
}

func (r *DFSPartitionReader) Next(ctx context.Context) ([]byte, error) {
	off := r.offsets[r.next]
	chunk, err := r.fs.ReadAt(ctx, r.location.StorageInfo.FilePath, off, r.offsets[r.next+1]-off)
	if err != nil {
		return nil, &client.FetchChunkError{Addr: r.location.StorageInfo.FilePath, Chunk: r.next, Err: err}
	}
	r.next++
	return chunk, nil
}

func (r *DFSPartitionReader) Close() error {
	return nil
}

func (r *DFSPartitionReader) Location() *protocol.PartitionLocation {
	return r.location
}
