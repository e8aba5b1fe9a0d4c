package storage

import (
	"sync"

	"go.uber.org/atomic"
)

// FlushNotifier counts the flush tasks a writer has in flight and keeps the
// first flush error. Once an error is set the writer is unusable.
type FlushNotifier struct {
	pending atomic.Int64

	mu  sync.Mutex
	err error
}

func (n *FlushNotifier) IncrementPending() {
	n.pending.Inc()
}

func (n *FlushNotifier) DecrementPending() {
	n.pending.Dec()
}

func (n *FlushNotifier) Pending() int64 {
	return n.pending.Load()
}

// SetError records err unless an error is already set. It reports whether err
// was recorded.
func (n *FlushNotifier) SetError(err error) bool {
	if err == nil {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return false
	}
	n.err = err
	return true
}

func (n *FlushNotifier) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

func (n *FlushNotifier) HasError() bool {
	return n.Err() != nil
}
