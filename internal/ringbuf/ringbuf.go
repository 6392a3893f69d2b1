// Package ringbuf provides a lock-free single-producer single-consumer
// ring of model.Tick values. The dispatcher goroutine pushes, one
// instrument worker pops; atomics plus cache-line padding keep the two
// sides from contending. A full ring drops the push and counts it.
package ringbuf

import (
	"sync/atomic"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
)

const cacheLine = 64

// Ring is a fixed-capacity SPSC tick queue. Capacity is always a power
// of two so the index wrap is a single mask.
type Ring struct {
	buf  []model.Tick
	mask uint64

	// head and tail live on separate cache lines: head is written only
	// by the producer, tail only by the consumer.
	_    [cacheLine]byte
	head atomic.Uint64
	_    [cacheLine]byte
	tail atomic.Uint64
	_    [cacheLine]byte

	dropped atomic.Uint64
}

// New returns a ring holding at least capacity ticks, rounded up to a
// power of two (minimum 2).
func New(capacity int) *Ring {
	n := nextPow2(capacity)
	if n < 2 {
		n = 2
	}
	return &Ring{
		buf:  make([]model.Tick, n),
		mask: uint64(n - 1),
	}
}

// Push enqueues a tick. It never blocks: when the ring is full the tick
// is dropped, the drop counter incremented, and false returned.
func (r *Ring) Push(t model.Tick) bool {
	head := r.head.Load()
	tail := r.tail.Load()

	if head-tail >= uint64(len(r.buf)) {
		r.dropped.Add(1)
		return false
	}

	r.buf[head&r.mask] = t
	r.head.Store(head + 1)
	return true
}

// Pop dequeues the oldest tick, or returns false when the ring is
// empty. Never blocks.
func (r *Ring) Pop() (model.Tick, bool) {
	tail := r.tail.Load()
	head := r.head.Load()

	if tail >= head {
		return model.Tick{}, false
	}

	t := r.buf[tail&r.mask]
	r.tail.Store(tail + 1)
	return t, true
}

// Len is the number of ticks currently queued.
func (r *Ring) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Cap is the rounded-up capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Dropped is the total number of ticks rejected by full-ring pushes.
func (r *Ring) Dropped() uint64 {
	return r.dropped.Load()
}

func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
