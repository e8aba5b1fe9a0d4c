package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/segmentio/kafka-go"
)

var (
	// ErrConnectTimeout is returned when a worker could not be reached in time.
	ErrConnectTimeout = errors.New("connect timed out")
	// ErrRPCTimeout is returned when a worker accepted a request but did not
	// answer before its deadline.
	ErrRPCTimeout = errors.New("rpc timed out")
)

// FetchChunkError wraps an I/O failure while a chunk was being transferred.
type FetchChunkError struct {
	Addr  string
	Chunk int
	Err   error
}

func (e *FetchChunkError) Error() string {
	return fmt.Sprintf("fetch chunk %d from %s: %v", e.Chunk, e.Addr, e.Err)
}

func (e *FetchChunkError) Unwrap() error {
	return e.Err
}

// IsCriticalCause reports whether err should get the failing worker
// excluded from further fetches: connect timeouts, rpc timeouts and chunk
// transfer failures. Application level errors are not critical.
func IsCriticalCause(err error) bool {
	var fetchErr *FetchChunkError
	return errors.Is(err, ErrConnectTimeout) ||
		errors.Is(err, ErrRPCTimeout) ||
		errors.As(err, &fetchErr)
}

// classifyTransportError maps low level transport failures onto the
// sentinel timeouts. Other errors are returned as they are.
func classifyTransportError(addr string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" && opErr.Timeout() {
		return fmt.Errorf("connecting to %s: %w: %v", addr, ErrConnectTimeout, err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("request to %s: %w: %v", addr, ErrRPCTimeout, err)
	}
	return fmt.Errorf("request to %s: %w", addr, err)
}

func KafkaErrorsToErr(kerrs map[string]error) error {
	var errs []error
	for _, err := range kerrs {
		if err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if len(errs) > 0 {
		return fmt.Errorf("kafka errors: %w", err)
	}
	return nil
}

func IncrementalAlterConfigsResponseResourcesError(resources []kafka.IncrementalAlterConfigsResponseResource) error {
	var errs []error
	for _, resource := range resources {
		if resource.Error != nil {
			errs = append(errs, fmt.Errorf("resource(%s) error: %w", resource.ResourceName, resource.Error))
		}
	}
	err := errors.Join(errs...)
	if len(errs) > 0 {
		return fmt.Errorf("alter config errors: %w", err)
	}
	return nil
}

func IsTransientNetworkError(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// IsDisconnection returns true if the err provided represents a TCP disconnection
func IsDisconnection(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ETIMEDOUT) || errors.Is(err, os.ErrDeadlineExceeded)
}
