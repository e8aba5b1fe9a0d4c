// Package services implements the worker side of the shuffle data path: the
// push and commit of partition replicas, the fetch streams serving committed
// files and the worker status.
package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/pecigonzalo/remote-shuffle/internal/client"
)

var metricsNamespace = "remote_shuffle"

var (
	// ErrInvalidRequest is returned for malformed file names or bodies.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStreamNotFound is returned for unknown or closed stream ids.
	ErrStreamNotFound = errors.New("stream not found")
)

type StatusService interface {
	Open()
	Close()
	StatusHandler() http.Handler
}

// PartitionService receives the replicas pushed by producers.
type PartitionService interface {
	Reserve(ctx context.Context, shuffleKey, fileName string, req client.ReserveRequest) error
	Push(ctx context.Context, shuffleKey, fileName string, data []byte) error
	Commit(ctx context.Context, shuffleKey, fileName string) (client.CommitResult, error)
	Cleanup(ctx context.Context, shuffleKey string) error
}

// FetchService serves committed partition files chunk by chunk.
type FetchService interface {
	OpenStream(ctx context.Context, shuffleKey, fileName string) (client.StreamHandle, error)
	FetchChunk(ctx context.Context, streamID string, index int) ([]byte, error)
	CloseStream(streamID string) error
	Streams() int
	Close()
}
