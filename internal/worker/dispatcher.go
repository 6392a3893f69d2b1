// Package worker runs the per-instrument pipelines: ticks from the
// feed are partitioned by instrument into SPSC rings, and one Loop
// goroutine per instrument owns that instrument's aggregation state,
// bar history, strategies, and decision evaluation. Nothing in a Loop
// needs a lock.
package worker

import (
	"context"
	"time"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/metrics"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/ringbuf"
)

const defaultRingCapacity = 1024

// Dispatcher routes ticks from the feed channel into per-instrument
// rings. Ticks for unknown instruments are dropped and counted.
type Dispatcher struct {
	rings  map[string]*ringbuf.Ring
	m      *metrics.Metrics
	health *metrics.HealthStatus
}

// NewDispatcher builds one ring per instrument.
func NewDispatcher(instruments []string, ringCapacity int, m *metrics.Metrics, health *metrics.HealthStatus) *Dispatcher {
	if ringCapacity <= 0 {
		ringCapacity = defaultRingCapacity
	}
	rings := make(map[string]*ringbuf.Ring, len(instruments))
	for _, id := range instruments {
		rings[id] = ringbuf.New(ringCapacity)
	}
	return &Dispatcher{rings: rings, m: m, health: health}
}

// Ring returns the ring for an instrument, or nil when the instrument
// is not configured.
func (d *Dispatcher) Ring(instrument string) *ringbuf.Ring {
	return d.rings[instrument]
}

// Run consumes ticks until ctx is cancelled or tickCh closes.
func (d *Dispatcher) Run(ctx context.Context, tickCh <-chan model.Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-tickCh:
			if !ok {
				return
			}
			d.route(tick)
		}
	}
}

func (d *Dispatcher) route(tick model.Tick) {
	if d.m != nil {
		d.m.TicksTotal.Inc()
	}
	if d.health != nil {
		d.health.SetLastTickTime(time.Now())
	}

	ring, ok := d.rings[tick.Instrument]
	if !ok {
		if d.m != nil {
			d.m.DroppedTicks.Inc()
		}
		return
	}
	if !ring.Push(tick) && d.m != nil {
		d.m.RingDrops.Inc()
	}
}
