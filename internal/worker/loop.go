package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/decision"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/history"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/logger"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/marketdata/agg"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/metrics"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/notification"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/ringbuf"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/strategy"
)

// idlePoll is the sleep between ring polls when no ticks are queued.
const idlePoll = 2 * time.Millisecond

// DecisionSink receives evaluated signals for publication.
type DecisionSink interface {
	PublishDecision(ctx context.Context, sig *model.Signal, res *model.DecisionResult) error
}

// SignalStore persists signals and their evaluation outcomes.
type SignalStore interface {
	SaveSignal(sig *model.Signal) error
	SaveDecision(signalID string, res *model.DecisionResult) error
}

// LoopConfig sets the per-instrument pipeline parameters.
type LoopConfig struct {
	Instrument   string
	FrameSec     int
	HistoryCap   int
	EvalInterval time.Duration
}

// Deps are the shared sinks and services a Loop writes to. Any nil
// field disables that output.
type Deps struct {
	Bars     chan<- model.Bar // closed bars, consumed by the fanout bus
	Forming  chan<- model.Bar // throttled forming-bar snapshots
	Settings func() model.Settings
	Sink     DecisionSink
	Store    SignalStore
	Notify   []notification.Notifier
	Log      *slog.Logger
	Metrics  *metrics.Metrics
}

// Loop is the single-goroutine pipeline for one instrument. It owns
// the aggregator, the history buffer, and the strategies.
type Loop struct {
	cfg        LoopConfig
	ring       *ringbuf.Ring
	agg        *agg.Aggregator
	hist       *history.Buffer
	strategies []strategy.Strategy
	deps       Deps

	lastEval time.Time
	now      func() time.Time
}

// NewLoop builds the pipeline for one instrument over its ring.
func NewLoop(cfg LoopConfig, ring *ringbuf.Ring, strategies []strategy.Strategy, deps Deps) *Loop {
	if cfg.EvalInterval <= 0 {
		cfg.EvalInterval = time.Minute
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Settings == nil {
		deps.Settings = func() model.Settings { return model.Settings{} }
	}

	l := &Loop{
		cfg:        cfg,
		ring:       ring,
		agg:        agg.New(cfg.FrameSec),
		hist:       history.New(cfg.HistoryCap),
		strategies: strategies,
		deps:       deps,
		now:        time.Now,
	}

	if deps.Forming != nil {
		l.agg.Emit = func(bar model.Bar) {
			select {
			case deps.Forming <- bar:
			default:
			}
		}
	}

	return l
}

// Seed preloads the history buffer with persisted bars, oldest first.
func (l *Loop) Seed(bars []model.Bar) {
	for _, b := range bars {
		l.hist.Append(b)
	}
	if len(bars) > 0 {
		l.deps.Log.Info("history seeded",
			slog.String("instrument", l.cfg.Instrument),
			slog.Int("bars", len(bars)))
	}
}

// Run drains the ring until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	for {
		tick, ok := l.ring.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idlePoll):
			}
			continue
		}
		l.process(ctx, tick)
	}
}

// process merges one tick and fires an evaluation when the cadence
// interval has elapsed.
func (l *Loop) process(ctx context.Context, tick model.Tick) {
	_, closed := l.agg.Ingest(tick)
	if closed != nil {
		l.hist.Append(*closed)
		if l.deps.Metrics != nil {
			l.deps.Metrics.BarsTotal.Inc()
			lag := l.now().Unix() - (closed.Time + int64(l.cfg.FrameSec))
			l.deps.Metrics.BarLag.Set(float64(lag))
		}
		if l.deps.Bars != nil {
			select {
			case l.deps.Bars <- *closed:
			default:
				l.deps.Log.Warn("bar sink full, dropping bar",
					slog.String("instrument", closed.Instrument),
					slog.Int64("time", closed.Time))
			}
		}
	}

	if l.now().Sub(l.lastEval) >= l.cfg.EvalInterval {
		l.lastEval = l.now()
		l.evaluate(ctx)
	}
}

// evaluate runs every strategy over the current history snapshot and
// pushes each candidate through the decision engine.
func (l *Loop) evaluate(ctx context.Context) {
	var current *model.Bar
	if bar, ok := l.agg.Current(l.cfg.Instrument); ok {
		current = &bar
	}
	snapshot := l.hist.Snapshot(current)
	if len(snapshot) == 0 {
		return
	}

	set := l.deps.Settings()

	for _, s := range l.strategies {
		sig := s.OnBar(l.cfg.Instrument, snapshot)
		if sig == nil {
			continue
		}
		if l.deps.Metrics != nil {
			l.deps.Metrics.SignalsTotal.Inc()
		}

		tctx := logger.WithTraceID(ctx, logger.GenerateTraceID(l.cfg.Instrument, l.now()))

		start := time.Now()
		res := decision.Evaluate(sig, snapshot, set)
		if l.deps.Metrics != nil {
			l.deps.Metrics.EvalDur.Observe(time.Since(start).Seconds())
			l.deps.Metrics.DecisionsTotal.WithLabelValues(string(res.Decision)).Inc()
			l.deps.Metrics.DecisionScore.Observe(float64(res.ScorePct))
		}

		if l.deps.Store != nil {
			if err := l.deps.Store.SaveSignal(sig); err != nil {
				l.deps.Log.Error("signal persist failed", append([]any{
					slog.String("signal", sig.ID), slog.Any("err", err),
				}, logger.LogWithTrace(tctx)...)...)
			}
			if err := l.deps.Store.SaveDecision(sig.ID, &res); err != nil {
				l.deps.Log.Error("decision persist failed", append([]any{
					slog.String("signal", sig.ID), slog.Any("err", err),
				}, logger.LogWithTrace(tctx)...)...)
			}
		}

		if l.deps.Sink != nil {
			if err := l.deps.Sink.PublishDecision(tctx, sig, &res); err != nil {
				l.deps.Log.Error("decision publish failed", append([]any{
					slog.String("signal", sig.ID), slog.Any("err", err),
				}, logger.LogWithTrace(tctx)...)...)
			}
		}

		l.deps.Log.Info("signal evaluated", append([]any{
			slog.String("instrument", l.cfg.Instrument),
			slog.String("signal", sig.ID),
			slog.String("strategy", sig.Strategy),
			slog.String("decision", string(res.Decision)),
			slog.Int("score_pct", res.ScorePct),
		}, logger.LogWithTrace(tctx)...)...)

		if res.Decision == model.DecisionTake {
			l.notifyAll(tctx, sig, &res)
		}
	}
}

func (l *Loop) notifyAll(ctx context.Context, sig *model.Signal, res *model.DecisionResult) {
	if len(l.deps.Notify) == 0 {
		return
	}
	alert := notification.DecisionAlert(sig, res)
	for _, n := range l.deps.Notify {
		channel := notification.Name(n)
		if err := n.Send(ctx, alert); err != nil {
			if l.deps.Metrics != nil {
				l.deps.Metrics.NotificationErrors.WithLabelValues(channel).Inc()
			}
			l.deps.Log.Warn("notification failed",
				slog.String("channel", channel), slog.Any("err", err))
			continue
		}
		if l.deps.Metrics != nil {
			l.deps.Metrics.NotificationsTotal.WithLabelValues(channel).Inc()
		}
	}
}
