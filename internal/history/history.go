// Package history provides the bounded per-instrument bar history used
// for indicator computation. Each buffer holds the most recent N
// completed bars in arrival order, evicting the oldest on overflow.
package history

import (
	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
)

// DefaultCapacity is the number of completed bars retained per instrument.
const DefaultCapacity = 200

// Buffer is a bounded FIFO of completed bars for one instrument.
// Not goroutine-safe: each buffer is owned by a single processing loop.
type Buffer struct {
	buf   []model.Bar // circular storage
	start int         // index of the oldest bar
	count int
}

// New creates a buffer holding at most capacity bars.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{buf: make([]model.Bar, capacity)}
}

// Append adds a completed bar, evicting the oldest if the buffer is full.
func (b *Buffer) Append(bar model.Bar) {
	if b.count < len(b.buf) {
		b.buf[(b.start+b.count)%len(b.buf)] = bar
		b.count++
		return
	}
	b.buf[b.start] = bar
	b.start = (b.start + 1) % len(b.buf)
}

// Len returns the number of bars currently held.
func (b *Buffer) Len() int { return b.count }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.buf) }

// Last returns the most recently appended bar.
func (b *Buffer) Last() (model.Bar, bool) {
	if b.count == 0 {
		return model.Bar{}, false
	}
	return b.buf[(b.start+b.count-1)%len(b.buf)], true
}

// Bars returns the held bars oldest-first as a fresh slice.
func (b *Buffer) Bars() []model.Bar {
	out := make([]model.Bar, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.buf[(b.start+i)%len(b.buf)]
	}
	return out
}

// Snapshot returns the held bars with the current forming bar appended
// as the final entry (when non-nil), ready for indicator computation.
func (b *Buffer) Snapshot(current *model.Bar) []model.Bar {
	if current == nil {
		return b.Bars()
	}
	out := make([]model.Bar, 0, b.count+1)
	out = append(out, b.Bars()...)
	out = append(out, *current)
	return out
}

// Series extracts the close/high/low price series from bars as float64,
// the representation all indicator math runs on.
func Series(bars []model.Bar) (closes, highs, lows []float64) {
	closes = make([]float64, len(bars))
	highs = make([]float64, len(bars))
	lows = make([]float64, len(bars))
	for i := range bars {
		closes[i] = bars[i].Close.InexactFloat64()
		highs[i] = bars[i].High.InexactFloat64()
		lows[i] = bars[i].Low.InexactFloat64()
	}
	return closes, highs, lows
}
