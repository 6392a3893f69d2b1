package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Bar is a fixed-width OHLCV aggregate for a single instrument.
// Time is the frame-aligned bucket start in Unix seconds:
// Time = floor(tickTime / frame) * frame.
// Complete is false while the bar is still forming.
type Bar struct {
	Instrument string          `json:"instrument"`
	Time       int64           `json:"time"`
	Open       decimal.Decimal `json:"open"`
	High       decimal.Decimal `json:"high"`
	Low        decimal.Decimal `json:"low"`
	Close      decimal.Decimal `json:"close"`
	Volume     int64           `json:"volume"`
	Complete   bool            `json:"complete"`
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// StreamKey returns the Redis stream key for finalized bars of this
// instrument at the given frame width: "bar:{frame}s:{instrument}".
func (b *Bar) StreamKey(frame int) string {
	return "bar:" + itoa(frame) + "s:" + b.Instrument
}

// PubSubChannel returns the pub/sub channel for live (possibly forming)
// bar snapshots: "pub:bar:{frame}s:{instrument}".
func (b *Bar) PubSubChannel(frame int) string {
	return "pub:bar:" + itoa(frame) + "s:" + b.Instrument
}

// itoa is a minimal int-to-string without importing strconv in hot path.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
