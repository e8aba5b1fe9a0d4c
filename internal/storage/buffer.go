package storage

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/atomic"
)

// CompositeBuffer is an ordered list of byte slices. Components are moved in,
// never copied, and must not be modified by the caller afterwards.
type CompositeBuffer struct {
	components [][]byte
	readable   int
	pool       *BufferPool
}

// AddComponent appends data to the end of the buffer.
func (b *CompositeBuffer) AddComponent(data []byte) {
	if len(data) == 0 {
		return
	}
	b.components = append(b.components, data)
	b.readable += len(data)
}

// Readable is the number of bytes held.
func (b *CompositeBuffer) Readable() int {
	return b.readable
}

func (b *CompositeBuffer) NumComponents() int {
	return len(b.components)
}

// WriteTo writes every component in order.
func (b *CompositeBuffer) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, c := range b.components {
		n, err := w.Write(c)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if n != len(c) {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// Bytes returns the content as one slice, merging components when needed.
func (b *CompositeBuffer) Bytes() []byte {
	switch len(b.components) {
	case 0:
		return nil
	case 1:
		return b.components[0]
	}
	merged := make([]byte, 0, b.readable)
	for _, c := range b.components {
		merged = append(merged, c...)
	}
	b.components = [][]byte{merged}
	return merged
}

// ReadRange copies n bytes starting at off.
func (b *CompositeBuffer) ReadRange(off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off+n > int64(b.readable) {
		return nil, fmt.Errorf("range [%d, %d) outside buffer of %d bytes", off, off+n, b.readable)
	}
	out := make([]byte, 0, n)
	var pos int64
	for _, c := range b.components {
		end := pos + int64(len(c))
		if end > off && pos < off+n {
			from := max(off-pos, 0)
			to := min(off+n-pos, int64(len(c)))
			out = append(out, c[from:to]...)
		}
		if end >= off+n {
			break
		}
		pos = end
	}
	return out, nil
}

// Replace drops every component and holds data instead.
func (b *CompositeBuffer) Replace(data []byte) {
	b.components = b.components[:0]
	b.readable = 0
	b.AddComponent(data)
}

func (b *CompositeBuffer) reset() {
	for i := range b.components {
		b.components[i] = nil
	}
	b.components = b.components[:0]
	b.readable = 0
}

// Release returns the buffer to the pool it was taken from. The buffer must
// not be used afterwards.
func (b *CompositeBuffer) Release() {
	pool := b.pool
	b.pool = nil
	b.reset()
	if pool != nil {
		pool.put(b)
	}
}

// BufferPool hands out reusable composite buffers and counts the ones not
// returned yet.
type BufferPool struct {
	name        string
	pool        sync.Pool
	outstanding atomic.Int64
}

func NewBufferPool(name string) *BufferPool {
	p := &BufferPool{name: name}
	p.pool.New = func() any {
		return &CompositeBuffer{}
	}
	return p
}

// Take checks a buffer out of the pool.
func (p *BufferPool) Take() *CompositeBuffer {
	b := p.pool.Get().(*CompositeBuffer)
	b.pool = p
	p.outstanding.Inc()
	outstandingBuffers.WithLabelValues(p.name).Inc()
	return b
}

func (p *BufferPool) put(b *CompositeBuffer) {
	p.outstanding.Dec()
	outstandingBuffers.WithLabelValues(p.name).Dec()
	p.pool.Put(b)
}

// Outstanding is the number of buffers taken and not released.
func (p *BufferPool) Outstanding() int64 {
	return p.outstanding.Load()
}
