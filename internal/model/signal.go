package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Side is the direction of a candidate signal.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Signal is a candidate trade signal presented to the decision engine.
// It is produced externally (e.g. by the breakout detector) and is
// immutable once presented: the engine only reads it.
// Prices are decimals; R is the reward-to-risk multiple of the setup.
type Signal struct {
	ID         string          `json:"id"`
	Instrument string          `json:"instrument"`
	TS         int64           `json:"ts"` // creation time, Unix ms
	Side       Side            `json:"side"`
	Entry      decimal.Decimal `json:"entry"`
	Stop       decimal.Decimal `json:"sl"`
	Take       decimal.Decimal `json:"tp"`
	Size       decimal.Decimal `json:"size"`
	R          float64         `json:"r"`
	Strategy   string          `json:"strategy,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	out, _ := json.Marshal(s)
	return out
}
