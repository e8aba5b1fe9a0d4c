// Package registry records committed partition files so a worker restarted
// after a graceful shutdown can serve them again.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/pecigonzalo/remote-shuffle/internal/protocol"
)

// FileMeta is the persisted description of a committed partition file.
type FileMeta struct {
	StorageInfo  protocol.StorageInfo `json:"storageInfo"`
	ChunkOffsets []int64              `json:"chunkOffsets"`
	// ProducerBitmap is the base64 roaring bitmap of producer ids, if tracked.
	ProducerBitmap string `json:"producerBitmap,omitempty"`
}

// Record is one committed file.
type Record struct {
	ShuffleKey string   `json:"shuffleKey"`
	FileName   string   `json:"fileName"`
	Meta       FileMeta `json:"meta"`
}

// Key identifies the record across updates.
func (r Record) Key() string {
	return r.ShuffleKey + "/" + r.FileName
}

// Registry is notified by writers on commit and read back on startup.
type Registry interface {
	NotifyCommitted(ctx context.Context, record Record) error
	// Forget drops every record of a shuffle once its files are deleted.
	Forget(ctx context.Context, shuffleKey string) error
	Recover(ctx context.Context) ([]Record, error)
	Close() error
}

var _ Registry = (*MemoryRegistry)(nil)

// MemoryRegistry keeps records in process. It survives writer restarts within
// one process and is the default when no broker is configured.
type MemoryRegistry struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: make(map[string]Record)}
}

func (r *MemoryRegistry) NotifyCommitted(_ context.Context, record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.Key()] = record
	return nil
}

func (r *MemoryRegistry) Forget(_ context.Context, shuffleKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, record := range r.records {
		if record.ShuffleKey == shuffleKey {
			delete(r.records, key)
		}
	}
	return nil
}

func (r *MemoryRegistry) Recover(_ context.Context) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedRecords(r.records), nil
}

func (r *MemoryRegistry) Close() error {
	return nil
}

func sortedRecords(records map[string]Record) []Record {
	out := make([]Record, 0, len(records))
	for _, record := range records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key() < out[j].Key()
	})
	return out
}
