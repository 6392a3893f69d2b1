package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/FIREguardSPB/spatial-pinwheel/config"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/logger"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/marketdata/bus"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/marketdata/feed"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/metrics"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/notification"
	redisstore "github.com/FIREguardSPB/spatial-pinwheel/internal/store/redis"
	sqlitestore "github.com/FIREguardSPB/spatial-pinwheel/internal/store/sqlite"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/strategy"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.Init("worker", logger.ParseLevel(cfg.LogLevel))

	instruments := cfg.ParseInstruments()
	if len(instruments) == 0 {
		log.Error("no instruments configured")
		os.Exit(1)
	}
	log.Info("starting",
		slog.Any("instruments", instruments),
		slog.Int("frame_sec", cfg.FrameSec),
		slog.String("feed", cfg.FeedURL))

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetInstruments(instruments)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- SQLite (off hot path) ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath}, cfg.FrameSec)
	if err != nil {
		log.Error("sqlite init failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer sqlWriter.Close()
	health.SetSQLiteOK(true)
	sqlWriter.OnCommit = func(d time.Duration) { prom.SQLiteCommitDur.Observe(d.Seconds()) }
	reader := sqlitestore.NewReader(sqlWriter.DB(), cfg.FrameSec)

	// ---- Redis (optional: the worker degrades to SQLite-only) ----
	var redisWriter *redisstore.Writer
	redisWriter, err = redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}, cfg.FrameSec)
	if err != nil {
		log.Warn("redis unavailable, continuing without it", slog.Any("err", err))
		redisWriter = nil
		health.SetRedisConnected(false)
	} else {
		health.SetRedisConnected(true)
		redisWriter.OnWrite = func(d time.Duration) { prom.RedisWriteDur.Observe(d.Seconds()) }
	}

	var buffered *redisstore.BufferedWriter
	if redisWriter != nil {
		cb := redisstore.NewCircuitBreaker(5, 30*time.Second)
		cb.OnStateChange = func(from, to redisstore.State) {
			log.Warn("redis circuit breaker state change",
				slog.String("from", from.String()), slog.String("to", to.String()))
			switch to {
			case redisstore.StateClosed:
				prom.RedisCircuitBreakerState.Set(0)
			case redisstore.StateOpen:
				prom.RedisCircuitBreakerState.Set(1)
				prom.RedisCircuitBreakerTrips.Inc()
			case redisstore.StateHalfOpen:
				prom.RedisCircuitBreakerState.Set(2)
			}
		}
		buffered = redisstore.NewBufferedWriter(ctx, redisWriter, cb, 10000)
		buffered.OnBuffer = func() { prom.RedisBufferedWrites.Inc() }
	}

	if redisWriter != nil {
		health.StartLivenessChecker(ctx, redisWriter.Client(), sqlWriter.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	}

	// ---- Shared decision settings (hot-reloaded over pubsub) ----
	var settings atomic.Value
	settings.Store(model.Settings{})
	if redisWriter != nil {
		store := redisstore.NewSettingsStore(redisWriter.Client())
		if set, err := store.Load(ctx); err != nil {
			log.Warn("settings load failed, using defaults", slog.Any("err", err))
		} else {
			settings.Store(set)
		}
		go store.Watch(ctx, func(set model.Settings) {
			settings.Store(set)
			prom.SettingsReloads.Inc()
			log.Info("decision settings reloaded")
		})
	}
	settingsFn := func() model.Settings { return settings.Load().(model.Settings) }

	// ---- Pipeline channels ----
	tickCh := make(chan model.Tick, 10000)
	barCh := make(chan model.Bar, 5000)
	var formingCh chan model.Bar

	// ---- Fan out closed bars to SQLite and Redis ----
	fanout := bus.New(5000)
	fanout.OnDrop = func(idx int) {
		prom.FanoutDrops.WithLabelValues(strconv.Itoa(idx)).Inc()
	}
	sqliteBarCh := fanout.Subscribe()
	var redisBarCh <-chan model.Bar
	if buffered != nil {
		redisBarCh = fanout.Subscribe()
	}
	go fanout.Run(ctx, barCh)
	go sqlWriter.Run(ctx, sqliteBarCh)
	if buffered != nil {
		formingCh = make(chan model.Bar, 1000)
		go buffered.Run(ctx, redisBarCh)
		go redisWriter.RunForming(ctx, formingCh)
	}

	// ---- Notification channels ----
	notifiers := buildNotifiers(cfg, log)

	// ---- Per-instrument loops ----
	dispatcher := worker.NewDispatcher(instruments, 1024, prom, health)

	var sink worker.DecisionSink
	if redisWriter != nil {
		sink = redisWriter
	}

	var wg sync.WaitGroup
	for _, inst := range instruments {
		l := worker.NewLoop(worker.LoopConfig{
			Instrument:   inst,
			FrameSec:     cfg.FrameSec,
			HistoryCap:   cfg.HistoryCap,
			EvalInterval: time.Duration(cfg.EvalIntervalSec) * time.Second,
		}, dispatcher.Ring(inst), []strategy.Strategy{
			strategy.NewBreakout(strategy.DefaultLookback),
		}, worker.Deps{
			Bars:     barCh,
			Forming:  formingCh,
			Settings: settingsFn,
			Sink:     sink,
			Store:    sqlWriter,
			Notify:   notifiers,
			Log:      log,
			Metrics:  prom,
		})

		if bars, err := reader.RecentBars(inst, cfg.HistoryCap); err != nil {
			log.Warn("history backfill failed", slog.String("instrument", inst), slog.Any("err", err))
		} else {
			l.Seed(bars)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Run(ctx)
		}()
	}
	go dispatcher.Run(ctx, tickCh)

	// ---- Feed ----
	ingest, err := feed.New(feed.Config{URL: cfg.FeedURL})
	if err != nil {
		log.Error("feed init failed", slog.Any("err", err))
		os.Exit(1)
	}
	var feedUp atomic.Bool
	ingest.OnConnect = func() {
		health.SetFeedConnected(true)
		feedUp.Store(true)
	}
	ingest.OnReconnect = func() {
		health.SetFeedConnected(false)
		prom.WSReconnects.Inc()
		// Alert once per outage, not once per retry.
		if feedUp.Swap(false) {
			alert := notification.Alert{
				Level:   notification.AlertWarning,
				Title:   "Tick feed disconnected",
				Message: "reconnecting with exponential backoff",
			}
			for _, n := range notifiers {
				if err := n.Send(ctx, alert); err != nil {
					log.Warn("feed alert delivery failed",
						slog.String("channel", notification.Name(n)), slog.Any("err", err))
				}
			}
		}
	}
	ingest.OnDrop = func() { prom.DroppedTicks.Inc() }
	go func() {
		if err := ingest.Start(ctx, tickCh); err != nil {
			log.Error("feed stopped", slog.Any("err", err))
		}
	}()

	log.Info("pipeline ready")

	<-ctx.Done()
	log.Info("shutdown signal received")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	metricsSrv.Stop(shutdownCtx)
	if redisWriter != nil {
		redisWriter.Close()
	}
	log.Info("shutdown complete")
}

// buildNotifiers assembles the enabled alert channels. The log
// notifier is always on so TAKE decisions are visible without any
// external configuration.
func buildNotifiers(cfg *config.Config, log *slog.Logger) []notification.Notifier {
	out := []notification.Notifier{notification.NewLogNotifier()}

	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn("telegram notifier disabled", slog.Any("err", err))
		} else {
			out = append(out, tg)
		}
	}
	if cfg.WebhookURL != "" {
		out = append(out, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	return out
}
