package reader

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/pecigonzalo/remote-shuffle/internal/protocol"
)

// ExcludedWorkers remembers workers that failed with a critical cause so
// that streams avoid them until the entry expires. It is shared by every
// stream of the process. Concurrent updates may overwrite each other.
type ExcludedWorkers struct {
	entries sync.Map // host:fetchPort -> time.Time
	expire  time.Duration
	clock   clock.Clock
}

func NewExcludedWorkers(expire time.Duration, clk clock.Clock) *ExcludedWorkers {
	if clk == nil {
		clk = clock.New()
	}
	return &ExcludedWorkers{expire: expire, clock: clk}
}

// Exclude records the worker serving loc as failed now.
func (e *ExcludedWorkers) Exclude(loc *protocol.PartitionLocation) {
	e.entries.Store(loc.HostAndFetchPort(), e.clock.Now())
	excludedWorkers.Inc()
}

func (e *ExcludedWorkers) timestamp(loc *protocol.PartitionLocation) (time.Time, bool) {
	v, ok := e.entries.Load(loc.HostAndFetchPort())
	if !ok {
		return time.Time{}, false
	}
	return v.(time.Time), true
}

// IsExcluded reports whether loc should not be read. Expired entries are
// dropped here. When both replicas are excluded, the one excluded earlier is
// tried again.
func (e *ExcludedWorkers) IsExcluded(loc *protocol.PartitionLocation) bool {
	ts, ok := e.timestamp(loc)
	if !ok {
		return false
	}
	if e.clock.Since(ts) > e.expire {
		e.entries.Delete(loc.HostAndFetchPort())
		return false
	}
	if loc.Peer == nil {
		return true
	}
	peerTs, ok := e.timestamp(loc.Peer)
	return !ok || peerTs.Before(ts)
}

// Len counts the entries, expired ones included.
func (e *ExcludedWorkers) Len() int {
	n := 0
	e.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
