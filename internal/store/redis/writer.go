// Package redis publishes bars and decisions to Redis and serves the
// shared decision settings document. Closed bars go to capped streams
// plus a latest-key and a pubsub channel; forming bars are pubsub-only
// so consumers can render live state without polluting the streams.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// ~1 trading week of one-minute bars.
	barStreamMaxLen    = 7000
	decisionStreamMax  = 10000
	defaultLatestTTL   = 30 * time.Minute
	decisionsStreamKey = "decisions"
	decisionsPubSubCh  = "pub:decisions"
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer writes bars and decision results to Redis.
type Writer struct {
	client *goredis.Client
	frame  int

	// OnWrite is an optional metrics hook fired per bar pipeline.
	OnWrite func(d time.Duration)
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a Redis Writer and pings the server.
func New(cfg WriterConfig, frameSeconds int) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client, frame: frameSeconds}, nil
}

// Run reads closed bars from barCh and writes them to Redis. Blocks
// until ctx is cancelled or barCh is closed.
func (w *Writer) Run(ctx context.Context, barCh <-chan model.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			w.writeBar(ctx, bar)
		}
	}
}

// RunForming publishes forming bars via pubsub only, no stream writes.
// Feeds live dashboards between bar closes.
func (w *Writer) RunForming(ctx context.Context, barCh <-chan model.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			w.client.Publish(ctx, bar.PubSubChannel(w.frame), string(bar.JSON()))
		}
	}
}

// writeBar performs the pipelined writes for one closed bar.
func (w *Writer) writeBar(ctx context.Context, bar model.Bar) {
	if err := w.writeBarErr(ctx, bar); err != nil {
		log.Printf("[redis] bar pipeline error for %s@%d: %v", bar.Instrument, bar.Time, err)
	}
}

func (w *Writer) writeBarErr(ctx context.Context, bar model.Bar) error {
	start := time.Now()
	defer func() {
		if w.OnWrite != nil {
			w.OnWrite(time.Since(start))
		}
	}()

	jsonData := string(bar.JSON())
	latestKey := fmt.Sprintf("bar:%ds:latest:%s", w.frame, bar.Instrument)

	pipe := w.client.Pipeline()

	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)

	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: bar.StreamKey(w.frame),
		MaxLen: barStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": jsonData,
		},
	})

	pipe.Publish(ctx, bar.PubSubChannel(w.frame), jsonData)

	_, err := pipe.Exec(ctx)
	return err
}

// PublishDecision appends a decision envelope to the decisions stream
// and announces it on pubsub.
func (w *Writer) PublishDecision(ctx context.Context, sig *model.Signal, res *model.DecisionResult) error {
	envelope := fmt.Sprintf(`{"signal":%s,"result":%s}`, sig.JSON(), res.JSON())

	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: decisionsStreamKey,
		MaxLen: decisionStreamMax,
		Approx: true,
		Values: map[string]interface{}{
			"data": envelope,
		},
	})
	pipe.Publish(ctx, decisionsPubSubCh, envelope)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish decision %s: %w", sig.ID, err)
	}
	return nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
