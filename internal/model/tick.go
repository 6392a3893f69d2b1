package model

import "github.com/shopspring/decimal"

// Tick is a single market data update for one instrument.
// Prices are decimals to avoid binary-float drift in financial comparisons.
// Time is a raw Unix timestamp as delivered by the feed: seconds or
// milliseconds, auto-detected downstream by magnitude.
type Tick struct {
	Instrument string          `json:"instrument"`
	Time       int64           `json:"time"`
	Open       decimal.Decimal `json:"open"`
	High       decimal.Decimal `json:"high"`
	Low        decimal.Decimal `json:"low"`
	Close      decimal.Decimal `json:"close"`
	Volume     int64           `json:"volume"`
	Complete   bool            `json:"complete,omitempty"`
}

// msThreshold is the magnitude above which a Unix timestamp is assumed
// to be in milliseconds. Unix seconds are ~1.7e9 today; ms are ~1.7e12.
const msThreshold = 10_000_000_000

// UnixSeconds returns the tick time normalized to Unix seconds.
func (t *Tick) UnixSeconds() int64 {
	if t.Time > msThreshold || t.Time < -msThreshold {
		return t.Time / 1000
	}
	return t.Time
}
