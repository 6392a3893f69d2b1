// cmd/tickserver — Demo WebSocket tick server.
// Broadcasts simulated OHLCV ticks so the worker can run without a
// live exchange feed.
//
// Tick JSON shape is identical to model.Tick:
//
//	{"instrument":"SBER","time":1700000000,"open":"285.1","high":"285.4","low":"284.9","close":"285.2","volume":40}
//
// Config (env vars):
//
//	TICK_SERVER_ADDR   — listen address (default: ":8081")
//	TICK_INSTRUMENTS   — comma-separated instrument ids (default: "SBER,GAZP")
//	TICK_INTERVAL_MS   — broadcast interval milliseconds (default: "250")
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
)

// instrument holds per-symbol simulation state.
type instrument struct {
	ID    string
	Price float64 // current simulated mid price
}

// ─── Hub ──────────────────────────────────────────────────────────────────────

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client — drop tick
		}
	}
}

// ─── WebSocket handler ────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[tickserver] upgrade error: %v", err)
			return
		}
		log.Printf("[tickserver] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[tickserver] client disconnected: %s", r.RemoteAddr)
		}()

		// Write pump: sends tick JSON to this client.
		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ─── Tick generator ──────────────────────────────────────────────────────────

// walkPrice applies a small random walk (±0.1%) to simulate price movement.
func walkPrice(rng *rand.Rand, price float64) float64 {
	pct := (rng.Float64()*0.2 - 0.1) / 100.0
	next := price * (1 + pct)
	if next < 0.01 {
		next = 0.01
	}
	return next
}

// makeTick builds a plausible intra-tick OHLCV around the walked price.
func makeTick(rng *rand.Rand, inst *instrument) model.Tick {
	open := inst.Price
	inst.Price = walkPrice(rng, inst.Price)
	cl := inst.Price

	spread := open * 0.0005 * rng.Float64()
	high := open
	if cl > high {
		high = cl
	}
	low := open
	if cl < low {
		low = cl
	}

	return model.Tick{
		Instrument: inst.ID,
		Time:       time.Now().Unix(),
		Open:       decimal.NewFromFloat(open).Round(2),
		High:       decimal.NewFromFloat(high + spread).Round(2),
		Low:        decimal.NewFromFloat(low - spread).Round(2),
		Close:      decimal.NewFromFloat(cl).Round(2),
		Volume:     int64(rng.Intn(100) + 1),
	}
}

func runGenerator(h *hub, instruments []instrument, intervalMs int) {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for range ticker.C {
		for i := range instruments {
			b, err := json.Marshal(makeTick(rng, &instruments[i]))
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
	}
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[tickserver] starting demo tick server...")

	addr := envOrDefault("TICK_SERVER_ADDR", ":8081")
	instrumentsEnv := envOrDefault("TICK_INSTRUMENTS", "SBER,GAZP")
	intervalMs := envIntOrDefault("TICK_INTERVAL_MS", 250)

	instruments := parseInstruments(instrumentsEnv)
	if len(instruments) == 0 {
		log.Fatalf("[tickserver] no instruments configured via TICK_INSTRUMENTS")
	}
	log.Printf("[tickserver] instruments: %+v", instruments)
	log.Printf("[tickserver] broadcast interval: %dms", intervalMs)

	h := newHub()
	go runGenerator(h, instruments, intervalMs)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"tickserver"}`)
	})

	log.Printf("[tickserver] listening on %s  (WebSocket: ws://localhost%s/ws)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[tickserver] server error: %v", err)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func parseInstruments(s string) []instrument {
	// Rough starting prices so simulated series look familiar.
	startPrices := map[string]float64{
		"SBER": 285.0,
		"GAZP": 128.5,
		"LKOH": 7100.0,
		"YNDX": 4250.0,
	}

	var result []instrument
	for _, part := range strings.Split(s, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		price := startPrices[id]
		if price == 0 {
			price = 1000.0
		}
		result = append(result, instrument{ID: id, Price: price})
	}
	return result
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
