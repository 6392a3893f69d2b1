package worker

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/ringbuf"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/strategy"
)

func tick(instrument string, ts int64, price float64) model.Tick {
	p := decimal.NewFromFloat(price)
	return model.Tick{
		Instrument: instrument,
		Time:       ts,
		Open:       p, High: p, Low: p, Close: p,
		Volume: 10,
	}
}

type stubStrategy struct {
	calls    int
	lastBars int
	sig      *model.Signal
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) OnBar(instrument string, bars []model.Bar) *model.Signal {
	s.calls++
	s.lastBars = len(bars)
	return s.sig
}

type recSink struct{ published []string }

func (r *recSink) PublishDecision(ctx context.Context, sig *model.Signal, res *model.DecisionResult) error {
	r.published = append(r.published, sig.ID)
	return nil
}

type recStore struct {
	signals   []string
	decisions []model.Decision
}

func (r *recStore) SaveSignal(sig *model.Signal) error {
	r.signals = append(r.signals, sig.ID)
	return nil
}

func (r *recStore) SaveDecision(signalID string, res *model.DecisionResult) error {
	r.decisions = append(r.decisions, res.Decision)
	return nil
}

func TestDispatcher_RoutesByInstrument(t *testing.T) {
	d := NewDispatcher([]string{"SBER"}, 4, nil, nil)

	tickCh := make(chan model.Tick, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx, tickCh)

	tickCh <- tick("SBER", 100, 1)
	tickCh <- tick("UNKNOWN", 100, 1)

	deadline := time.After(time.Second)
	for d.Ring("SBER").Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("tick never reached the SBER ring")
		case <-time.After(time.Millisecond):
		}
	}
	if d.Ring("UNKNOWN") != nil {
		t.Error("ring exists for unconfigured instrument")
	}
	if got, _ := d.Ring("SBER").Pop(); got.Instrument != "SBER" {
		t.Errorf("routed tick instrument=%s", got.Instrument)
	}
}

func TestLoop_ClosedBarsFlowToSink(t *testing.T) {
	bars := make(chan model.Bar, 4)
	ring := ringbuf.New(8)
	l := NewLoop(LoopConfig{
		Instrument:   "SBER",
		FrameSec:     60,
		HistoryCap:   10,
		EvalInterval: time.Hour, // not under test here
	}, ring, nil, Deps{Bars: bars})
	l.lastEval = time.Now() // suppress the immediate first evaluation

	ctx := context.Background()
	l.process(ctx, tick("SBER", 120, 100))
	l.process(ctx, tick("SBER", 130, 101))
	// New frame closes the 120s bar.
	l.process(ctx, tick("SBER", 185, 102))

	select {
	case b := <-bars:
		if b.Time != 120 || !b.Complete {
			t.Errorf("closed bar time=%d complete=%v", b.Time, b.Complete)
		}
		if !b.Close.Equal(decimal.NewFromInt(101)) {
			t.Errorf("closed bar close=%s, want 101", b.Close)
		}
	default:
		t.Fatal("no closed bar emitted")
	}

	if l.hist.Len() != 1 {
		t.Errorf("history len=%d, want 1", l.hist.Len())
	}
}

func TestLoop_EvaluatesOnCadence(t *testing.T) {
	sig := &model.Signal{
		ID:         "sig_test",
		Instrument: "SBER",
		Side:       model.SideBuy,
		Entry:      decimal.NewFromInt(100),
		Stop:       decimal.NewFromInt(98),
		Take:       decimal.NewFromInt(105),
		Size:       decimal.NewFromInt(1),
		R:          2.0,
	}
	stub := &stubStrategy{sig: sig}
	sink := &recSink{}
	store := &recStore{}

	ring := ringbuf.New(8)
	l := NewLoop(LoopConfig{
		Instrument:   "SBER",
		FrameSec:     60,
		HistoryCap:   10,
		EvalInterval: time.Minute,
	}, ring, []strategy.Strategy{stub}, Deps{
		Sink:  sink,
		Store: store,
	})

	clock := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return clock }

	ctx := context.Background()

	// lastEval is zero, so the first tick triggers an evaluation over
	// the single forming bar.
	l.process(ctx, tick("SBER", 120, 100))
	if stub.calls != 1 || stub.lastBars != 1 {
		t.Fatalf("calls=%d lastBars=%d, want 1/1", stub.calls, stub.lastBars)
	}

	// Within the cadence window: no new evaluation.
	clock = clock.Add(30 * time.Second)
	l.process(ctx, tick("SBER", 130, 101))
	if stub.calls != 1 {
		t.Fatalf("evaluation fired inside the cadence window")
	}

	// Past the window: evaluates again.
	clock = clock.Add(31 * time.Second)
	l.process(ctx, tick("SBER", 140, 102))
	if stub.calls != 2 {
		t.Fatalf("calls=%d, want 2 after the interval elapsed", stub.calls)
	}

	// The thin history rejects the candidate, and every stage saw it.
	if len(sink.published) != 2 || sink.published[0] != "sig_test" {
		t.Errorf("published=%v", sink.published)
	}
	if len(store.signals) != 2 || len(store.decisions) != 2 {
		t.Fatalf("store signals=%d decisions=%d, want 2/2", len(store.signals), len(store.decisions))
	}
	if store.decisions[0] != model.DecisionReject {
		t.Errorf("decision=%s, want REJECT on thin history", store.decisions[0])
	}
}

func TestLoop_SeedPreloadsHistory(t *testing.T) {
	ring := ringbuf.New(2)
	l := NewLoop(LoopConfig{Instrument: "SBER", FrameSec: 60, HistoryCap: 10}, ring, nil, Deps{})

	seed := []model.Bar{
		{Instrument: "SBER", Time: 60, Complete: true},
		{Instrument: "SBER", Time: 120, Complete: true},
		{Instrument: "SBER", Time: 180, Complete: true},
	}
	l.Seed(seed)

	if l.hist.Len() != 3 {
		t.Errorf("history len=%d, want 3", l.hist.Len())
	}
	bars := l.hist.Bars()
	if bars[0].Time != 60 || bars[2].Time != 180 {
		t.Errorf("seed order wrong: first=%d last=%d", bars[0].Time, bars[2].Time)
	}
}

func TestLoop_RunDrainsRing(t *testing.T) {
	bars := make(chan model.Bar, 4)
	ring := ringbuf.New(8)
	l := NewLoop(LoopConfig{
		Instrument:   "SBER",
		FrameSec:     60,
		HistoryCap:   10,
		EvalInterval: time.Hour,
	}, ring, nil, Deps{Bars: bars})
	l.lastEval = time.Now()

	ring.Push(tick("SBER", 120, 100))
	ring.Push(tick("SBER", 185, 101))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	select {
	case b := <-bars:
		if b.Time != 120 {
			t.Errorf("closed bar time=%d, want 120", b.Time)
		}
	case <-time.After(time.Second):
		t.Fatal("Run never processed the queued ticks")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
