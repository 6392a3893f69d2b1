package redis

import (
	"context"
	"log"
	"sync"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
)

// pendingWrite is a bar held back while the breaker was open.
type pendingWrite struct {
	bar model.Bar
}

// BufferedWriter runs bar writes through a circuit breaker. While the
// breaker is open, bars queue locally and are replayed once Redis
// recovers, so a Redis outage costs latency rather than data.
type BufferedWriter struct {
	writer *Writer
	cb     *CircuitBreaker
	ctx    context.Context

	mu     sync.Mutex
	buffer []pendingWrite
	maxBuf int

	// OnBuffer fires per held-back write, OnFlush after a replay.
	OnBuffer func()
	OnFlush  func(count int)
}

// NewBufferedWriter wraps w with cb. maxBufferSize caps the local
// queue (oldest bars are dropped past it); values <= 0 mean 10000.
func NewBufferedWriter(ctx context.Context, w *Writer, cb *CircuitBreaker, maxBufferSize int) *BufferedWriter {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	bw := &BufferedWriter{
		writer: w,
		cb:     cb,
		ctx:    ctx,
		buffer: make([]pendingWrite, 0, 256),
		maxBuf: maxBufferSize,
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go bw.flush()
		}
	}

	return bw
}

// WriteBar writes one closed bar through the breaker, queueing it
// locally when the breaker is open. Always returns nil for a queued
// write: the bar is deferred, not lost.
func (bw *BufferedWriter) WriteBar(bar model.Bar) error {
	err := bw.cb.Execute(func() error {
		return bw.writer.writeBarErr(bw.ctx, bar)
	})
	if err == ErrCircuitOpen {
		bw.hold(bar)
		return nil
	}
	return err
}

// Run consumes closed bars from barCh until ctx is cancelled or the
// channel closes.
func (bw *BufferedWriter) Run(ctx context.Context, barCh <-chan model.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			bw.WriteBar(bar)
		}
	}
}

func (bw *BufferedWriter) hold(bar model.Bar) {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if len(bw.buffer) >= bw.maxBuf {
		bw.buffer = bw.buffer[1:]
	}
	bw.buffer = append(bw.buffer, pendingWrite{bar: bar})

	if bw.OnBuffer != nil {
		bw.OnBuffer()
	}
}

// flush replays queued bars through the underlying writer.
func (bw *BufferedWriter) flush() {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return
	}
	toFlush := bw.buffer
	bw.buffer = make([]pendingWrite, 0, 256)
	bw.mu.Unlock()

	for _, p := range toFlush {
		if err := bw.writer.writeBarErr(bw.ctx, p.bar); err != nil {
			log.Printf("[redis] replay failed for %s@%d: %v", p.bar.Instrument, p.bar.Time, err)
		}
	}

	log.Printf("[redis] replayed %d buffered bars", len(toFlush))
	if bw.OnFlush != nil {
		bw.OnFlush(len(toFlush))
	}
}

// Buffered returns the current local queue length.
func (bw *BufferedWriter) Buffered() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}
