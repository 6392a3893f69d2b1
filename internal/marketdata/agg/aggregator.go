// Package agg builds fixed-width OHLCV bars from a stream of ticks.
//
// Each tick is merged into the forming bar for its frame bucket
// (period_start = floor(tickTime/frame)*frame). A tick resolving to a
// different bucket finalizes the forming bar and opens a new one from
// the tick's own OHLC. No reorder buffering is performed: the design
// trusts monotonic tick delivery and tolerates gaps by skipping unseen
// frames.
package agg

import (
	"time"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
)

// barState holds the forming bar for one instrument in the current frame.
type barState struct {
	frame int64 // frame-aligned bucket start (Unix seconds)
	bar   model.Bar
}

// Aggregator rolls ticks into bars for one frame width across any
// number of instruments. Designed to run in a single goroutine per
// partition — no locks needed when each instrument's ticks are
// processed strictly in arrival order by one owner.
type Aggregator struct {
	frame  int64
	states map[string]*barState

	// Emit, when set, receives a snapshot of the current (possibly
	// partial) bar, throttled to at most once per wall-clock second per
	// instrument. Throttling bounds downstream publish volume only;
	// aggregation state is always updated regardless.
	Emit func(bar model.Bar)

	lastEmit map[string]time.Time
	now      func() time.Time // injectable clock for throttle tests
}

// New creates an Aggregator for the given frame width in seconds
// (e.g. 60, 300, 900).
func New(frameSeconds int) *Aggregator {
	if frameSeconds <= 0 {
		frameSeconds = 60
	}
	return &Aggregator{
		frame:    int64(frameSeconds),
		states:   make(map[string]*barState, 16),
		lastEmit: make(map[string]time.Time, 16),
		now:      time.Now,
	}
}

// Frame returns the configured frame width in seconds.
func (a *Aggregator) Frame() int { return int(a.frame) }

// Ingest merges one tick and returns the current partial bar plus the
// finalized previous bar when the tick opened a new frame (nil
// otherwise). The tick timestamp may be in seconds or milliseconds;
// milliseconds are detected by magnitude and normalized.
func (a *Aggregator) Ingest(tick model.Tick) (current model.Bar, closed *model.Bar) {
	ts := tick.UnixSeconds()
	frameStart := ts - ts%a.frame

	st, exists := a.states[tick.Instrument]

	if exists && st.frame == frameStart {
		// Same frame — merge OHLCV.
		b := &st.bar
		if tick.High.Cmp(b.High) > 0 {
			b.High = tick.High
		}
		if tick.Low.Cmp(b.Low) < 0 {
			b.Low = tick.Low
		}
		b.Close = tick.Close
		b.Volume += tick.Volume
	} else {
		// New frame (later, or earlier after a feed restart) —
		// finalize the forming bar and open a fresh one.
		if exists {
			done := st.bar
			done.Complete = true
			closed = &done
		}
		st = &barState{
			frame: frameStart,
			bar: model.Bar{
				Instrument: tick.Instrument,
				Time:       frameStart,
				Open:       tick.Open,
				High:       tick.High,
				Low:        tick.Low,
				Close:      tick.Close,
				Volume:     tick.Volume,
			},
		}
		a.states[tick.Instrument] = st
	}

	a.emitThrottled(st.bar)
	return st.bar, closed
}

// Current returns the forming bar for an instrument, if any.
func (a *Aggregator) Current(instrument string) (model.Bar, bool) {
	st, ok := a.states[instrument]
	if !ok {
		return model.Bar{}, false
	}
	return st.bar, true
}

// emitThrottled publishes a forming-bar snapshot at most once per
// second per instrument.
func (a *Aggregator) emitThrottled(bar model.Bar) {
	if a.Emit == nil {
		return
	}
	now := a.now()
	if now.Sub(a.lastEmit[bar.Instrument]) < time.Second {
		return
	}
	a.lastEmit[bar.Instrument] = now
	a.Emit(bar)
}
