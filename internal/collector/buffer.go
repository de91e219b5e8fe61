package collector

import (
	"sync"
)

// GrowableBuffer decouples the single pipeline goroutine from its
// consumers. It grows instead of blocking the sender: a burst of deltas
// from a log catch-up must never stall line processing, and the writer
// drains it shortly after. Capacity doubles once the buffer passes 70%
// full.
type GrowableBuffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []T
	head   int
	tail   int
	count  int
	closed bool

	received int64
	sent     int64
	resizes  int
}

// NewGrowableBuffer creates a buffer with the given initial capacity.
func NewGrowableBuffer[T any](initial int) *GrowableBuffer[T] {
	if initial < 1 {
		initial = 1
	}
	b := &GrowableBuffer[T]{buf: make([]T, initial)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send enqueues an item, growing the buffer if needed.
// Returns false once the buffer is closed.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := (len(b.buf) * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if b.count+1 >= threshold {
		b.grow()
	}

	b.buf[b.tail] = item
	b.tail = (b.tail + 1) % len(b.buf)
	b.count++
	b.received++

	b.cond.Signal()
	return true
}

// Receive blocks until an item is available or the buffer is closed and
// drained. ok=false means no more items will ever arrive.
func (b *GrowableBuffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.take(), true
}

// TryReceive dequeues an item without blocking.
func (b *GrowableBuffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.take(), true
}

// DrainTo removes up to max items (all of them when max <= 0).
func (b *GrowableBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	n := b.count
	if max > 0 && max < n {
		n = max
	}
	out := make([]T, n)
	for i := range out {
		out[i] = b.take()
	}
	return out
}

// Close marks the buffer closed. Queued items remain receivable.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}

// Len returns the number of queued items.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current capacity.
func (b *GrowableBuffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// BufferStats contains buffer counters.
type BufferStats struct {
	Count    int
	Capacity int
	Received int64
	Sent     int64
	Resizes  int
}

// Stats returns current counters.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:    b.count,
		Capacity: len(b.buf),
		Received: b.received,
		Sent:     b.sent,
		Resizes:  b.resizes,
	}
}

// take removes the head item. Lock must be held, count must be > 0.
func (b *GrowableBuffer[T]) take() T {
	item := b.buf[b.head]
	var zero T
	b.buf[b.head] = zero
	b.head = (b.head + 1) % len(b.buf)
	b.count--
	b.sent++
	return item
}

// grow doubles capacity, unwrapping the ring. Lock must be held.
func (b *GrowableBuffer[T]) grow() {
	next := make([]T, len(b.buf)*2)
	if b.count > 0 {
		if b.head < b.tail {
			copy(next, b.buf[b.head:b.tail])
		} else {
			n := copy(next, b.buf[b.head:])
			copy(next[n:], b.buf[:b.tail])
		}
	}
	b.buf = next
	b.head = 0
	b.tail = b.count
	b.resizes++
}
