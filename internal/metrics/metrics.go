// Package metrics exposes Prometheus instrumentation and the /healthz
// endpoint for the signal worker.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the worker.
type Metrics struct {
	TicksTotal   prometheus.Counter
	BarsTotal    prometheus.Counter
	WSReconnects prometheus.Counter
	DroppedTicks prometheus.Counter
	RingDrops    prometheus.Counter

	FanoutDrops *prometheus.CounterVec // labels: subscriber

	SignalsTotal   prometheus.Counter
	DecisionsTotal *prometheus.CounterVec // labels: decision
	DecisionScore  prometheus.Histogram
	EvalDur        prometheus.Histogram

	RedisWriteDur   prometheus.Histogram
	SQLiteCommitDur prometheus.Histogram
	BarLag          prometheus.Gauge

	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedWrites      prometheus.Counter

	NotificationsTotal *prometheus.CounterVec // labels: channel
	NotificationErrors *prometheus.CounterVec // labels: channel

	SettingsReloads prometheus.Counter
}

// NewMetrics registers and returns all worker metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worker_ticks_total",
			Help: "Total ticks received from the feed",
		}),
		BarsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worker_bars_total",
			Help: "Total closed bars produced by the aggregator",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worker_ws_reconnects_total",
			Help: "Total feed reconnection attempts",
		}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worker_dropped_ticks_total",
			Help: "Ticks dropped before dispatch (malformed or unknown instrument)",
		}),
		RingDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worker_ring_drops_total",
			Help: "Ticks dropped by full per-instrument rings",
		}),

		FanoutDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_fanout_drops_total",
			Help: "Closed bars dropped by saturated fanout subscribers",
		}, []string{"subscriber"}),

		SignalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worker_signals_total",
			Help: "Candidate signals produced by strategies",
		}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_decisions_total",
			Help: "Decisions by outcome",
		}, []string{"decision"}),
		DecisionScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_decision_score_pct",
			Help:    "Normalized decision score distribution",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		EvalDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_eval_duration_seconds",
			Help:    "Decision evaluation latency per signal",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
		}),

		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_redis_write_duration_seconds",
			Help:    "Redis write latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		BarLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "worker_bar_lag_seconds",
			Help: "Lag between bar close time and publication",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "worker_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worker_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worker_redis_buffered_writes_total",
			Help: "Writes buffered locally while the breaker was open",
		}),

		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_notifications_total",
			Help: "Notifications delivered per channel",
		}, []string{"channel"}),
		NotificationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_notification_errors_total",
			Help: "Notification delivery failures per channel",
		}, []string{"channel"}),

		SettingsReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worker_settings_reloads_total",
			Help: "Settings snapshots reloaded from the store",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.BarsTotal,
		m.WSReconnects,
		m.DroppedTicks,
		m.RingDrops,
		m.FanoutDrops,
		m.SignalsTotal,
		m.DecisionsTotal,
		m.DecisionScore,
		m.EvalDur,
		m.RedisWriteDur,
		m.SQLiteCommitDur,
		m.BarLag,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedWrites,
		m.NotificationsTotal,
		m.NotificationErrors,
		m.SettingsReloads,
	)

	return m
}

// HealthStatus represents the worker's health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool      `json:"feed_connected"`
	LastTickTime   time.Time `json:"last_tick_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	Instruments    []string  `json:"instruments"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetInstruments(ids []string) {
	h.mu.Lock()
	h.Instruments = ids
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.FeedConnected || !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		FeedConnected   bool     `json:"feed_connected"`
		LastTickTime    string   `json:"last_tick_time"`
		TickAge         string   `json:"tick_age"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
		Instruments     []string `json:"instruments"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:   h.FeedConnected,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		Instruments:     h.Instruments,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
