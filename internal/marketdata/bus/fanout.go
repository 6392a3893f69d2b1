// Package bus fans closed bars out from the instrument workers to the
// persistence and publishing sinks.
package bus

import (
	"context"
	"log"
	"sync"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
)

// FanOut broadcasts bars from one input channel to every subscriber.
// A full subscriber channel drops the bar for that subscriber only, so
// one slow sink can never stall the pipeline.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan model.Bar
	bufSize int

	// OnDrop is called with the 0-based index of the slow subscriber
	// whenever a bar is dropped for it.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut whose subscriber channels buffer bufSize bars.
func New(outputBufferSize int) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
	}
}

// Subscribe registers and returns a new output channel. All sinks must
// subscribe before Run starts.
func (f *FanOut) Subscribe() <-chan model.Bar {
	ch := make(chan model.Bar, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, ch)
	f.mu.Unlock()
	return ch
}

// Run broadcasts from input until ctx is cancelled or input closes,
// then closes every subscriber channel.
func (f *FanOut) Run(ctx context.Context, input <-chan model.Bar) {
	defer func() {
		f.mu.RLock()
		for _, ch := range f.outputs {
			close(ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for i, ch := range f.outputs {
				select {
				case ch <- bar:
				default:
					if f.OnDrop != nil {
						f.OnDrop(i)
					} else {
						log.Printf("[bus] subscriber %d full, dropping bar %s@%d", i, bar.Instrument, bar.Time)
					}
				}
			}
			f.mu.RUnlock()
		}
	}
}

// ChannelStat reports the fill state of one subscriber channel.
type ChannelStat struct {
	Len int
	Cap int
}

// ChannelStats returns the fill state of every subscriber channel, for
// saturation reporting.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, ch := range f.outputs {
		stats[i] = ChannelStat{Len: len(ch), Cap: cap(ch)}
	}
	return stats
}
