package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/pecigonzalo/remote-shuffle/internal/shuffle"
)

// FileSystem is the byte store behind disk and distributed filesystem files.
type FileSystem interface {
	// Create creates an empty file, replacing any previous content.
	Create(ctx context.Context, path string) error
	// Append writes data at offset, which must be the current end of the file.
	Append(ctx context.Context, path string, offset int64, data []byte) error
	ReadAt(ctx context.Context, path string, offset, n int64) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// Remove deletes the file. A missing file is not an error.
	Remove(ctx context.Context, path string) error
}

var _ FileSystem = (*AferoFileSystem)(nil)

// NewDFS builds the distributed filesystem tier. It returns nil when the tier
// is disabled. The local kind keeps files under Root on an OS mount, such as
// a network filesystem.
func NewDFS(config shuffle.DFSConfig, osFs afero.Fs) (FileSystem, error) {
	switch config.Kind {
	case "":
		return nil, nil
	case "local":
		if config.Root == "" {
			return nil, errors.New("local distributed filesystem needs a root")
		}
		return NewAferoFileSystem(osFs), nil
	case "s3":
		if config.Bucket == "" {
			return nil, errors.New("s3 distributed filesystem needs a bucket")
		}
		fs, err := NewS3FileSystem(config)
		if err != nil {
			return nil, err
		}
		return fs, nil
	default:
		return nil, fmt.Errorf("unknown distributed filesystem kind %q", config.Kind)
	}
}

// AferoFileSystem stores files in an afero filesystem, an OS directory tree in
// production and a memory map in tests.
type AferoFileSystem struct {
	fs afero.Fs
}

func NewAferoFileSystem(fs afero.Fs) *AferoFileSystem {
	return &AferoFileSystem{fs: fs}
}

func (a *AferoFileSystem) Create(_ context.Context, path string) error {
	if err := a.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := a.fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func (a *AferoFileSystem) Append(_ context.Context, path string, offset int64, data []byte) error {
	f, err := a.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(data, offset); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *AferoFileSystem) ReadAt(_ context.Context, path string, offset, n int64) ([]byte, error) {
	f, err := a.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := f.ReadAt(buf, offset)
	if int64(read) != n {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read %d bytes at %d from %s: got %d: %w", n, offset, path, read, err)
	}
	return buf, nil
}

func (a *AferoFileSystem) WriteFile(_ context.Context, path string, data []byte) error {
	if err := a.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(a.fs, path, data, 0o644)
}

func (a *AferoFileSystem) ReadFile(_ context.Context, path string) ([]byte, error) {
	return afero.ReadFile(a.fs, path)
}

func (a *AferoFileSystem) Remove(_ context.Context, path string) error {
	if err := a.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IndexPath is where the chunk index of a distributed filesystem file is
// stored.
func IndexPath(path string) string {
	return path + ".index"
}

// EncodeChunkIndex serializes chunk offsets as a little-endian count followed
// by the offsets.
func EncodeChunkIndex(offsets []int64) []byte {
	out := make([]byte, 4+8*len(offsets))
	binary.LittleEndian.PutUint32(out, uint32(len(offsets)))
	for i, off := range offsets {
		binary.LittleEndian.PutUint64(out[4+8*i:], uint64(off))
	}
	return out
}

// DecodeChunkIndex parses an index written by EncodeChunkIndex.
func DecodeChunkIndex(data []byte) ([]int64, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("chunk index too short: %d bytes", len(data))
	}
	count := int(binary.LittleEndian.Uint32(data))
	if len(data) != 4+8*count {
		return nil, fmt.Errorf("chunk index declares %d offsets in %d bytes", count, len(data))
	}
	offsets := make([]int64, count)
	for i := range offsets {
		offsets[i] = int64(binary.LittleEndian.Uint64(data[4+8*i:]))
		if i > 0 && offsets[i] < offsets[i-1] {
			return nil, fmt.Errorf("chunk index offset %d decreases", i)
		}
	}
	if count == 0 || offsets[0] != 0 {
		return nil, errors.New("chunk index must start at offset 0")
	}
	return offsets, nil
}
