// Package feed provides the WebSocket ingest client. It connects to a
// tick server (e.g. cmd/tickserver), decodes one JSON tick per message,
// and pushes them into the pipeline without ever blocking on a slow
// consumer.
//
// Wire format is model.Tick:
//
//	{"instrument":"SBER","time":1700000000123,"open":"185.2","high":"185.4",
//	 "low":"185.1","close":"185.3","volume":120}
package feed

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"time"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"

	"github.com/gorilla/websocket"
)

// Config holds configuration for the tick ingest.
type Config struct {
	// URL of the tick WebSocket server, e.g. "ws://localhost:8081/ws".
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 60s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 60 * time.Second
	}
}

// Ingest streams ticks from a WebSocket server into a channel,
// reconnecting with exponential backoff on every disconnect.
type Ingest struct {
	cfg Config

	// OnConnect and OnReconnect are optional health/metrics hooks.
	OnConnect   func()
	OnReconnect func()
	// OnDrop fires when a tick is discarded because tickCh is full.
	OnDrop func()
}

// New creates an Ingest. Returns an error if the URL is unparseable.
func New(cfg Config) (*Ingest, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &Ingest{cfg: cfg}, nil
}

// Start connects and streams ticks into tickCh. Blocks until ctx is
// cancelled; reconnects automatically on disconnect, resetting the
// backoff after each successful session.
func (ing *Ingest) Start(ctx context.Context, tickCh chan<- model.Tick) error {
	delay := ing.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		connected, err := ing.runOnce(ctx, tickCh)
		if err == nil {
			return nil
		}
		if connected {
			delay = ing.cfg.ReconnectDelay
		}

		log.Printf("[feed] disconnected (%v), reconnecting in %s...", err, delay)
		if ing.OnReconnect != nil {
			ing.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > ing.cfg.MaxReconnectDelay {
			delay = ing.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect
// or ctx cancellation. The bool reports whether the dial succeeded.
func (ing *Ingest) runOnce(ctx context.Context, tickCh chan<- model.Tick) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, ing.cfg.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	log.Printf("[feed] connected to %s", ing.cfg.URL)
	if ing.OnConnect != nil {
		ing.OnConnect()
	}

	// Close the connection when ctx is cancelled so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-done:
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return true, nil
			default:
			}
			return true, err
		}

		var tick model.Tick
		if err := json.Unmarshal(raw, &tick); err != nil {
			log.Printf("[feed] parse error: %v (raw: %s)", err, raw)
			continue
		}
		if tick.Instrument == "" {
			log.Printf("[feed] skipping tick with empty instrument")
			continue
		}

		select {
		case tickCh <- tick:
		default:
			if ing.OnDrop != nil {
				ing.OnDrop()
			} else {
				log.Println("[feed] tickCh full, dropping tick")
			}
		}
	}
}
