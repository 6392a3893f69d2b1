package strategy

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
)

func bar(high, low, close float64) model.Bar {
	return model.Bar{
		Instrument: "SBER",
		Open:       decimal.NewFromFloat(close),
		High:       decimal.NewFromFloat(high),
		Low:        decimal.NewFromFloat(low),
		Close:      decimal.NewFromFloat(close),
		Volume:     100,
		Complete:   true,
	}
}

// flatThenBreak builds a flat range of n-1 bars topped at rangeHigh,
// then one closing bar.
func flatThenBreak(n int, rangeHigh, lastHigh, lastLow, lastClose float64) []model.Bar {
	bars := make([]model.Bar, 0, n)
	for i := 0; i < n-1; i++ {
		bars = append(bars, bar(rangeHigh, rangeHigh-2, rangeHigh-1))
	}
	return append(bars, bar(lastHigh, lastLow, lastClose))
}

func TestBreakout_FiresAboveRange(t *testing.T) {
	b := NewBreakout(20)
	b.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	// Range top 105, close 106 with a 2-point bar.
	sig := b.OnBar("SBER", flatThenBreak(20, 105, 106.5, 104.5, 106))
	if sig == nil {
		t.Fatal("expected a signal on a close above the range high")
	}

	if sig.Side != model.SideBuy {
		t.Errorf("side=%s, want BUY", sig.Side)
	}
	if !sig.Entry.Equal(decimal.NewFromInt(106)) {
		t.Errorf("entry=%s, want 106", sig.Entry)
	}
	// volatility = 106.5-104.5 = 2 → sl 102, tp 112.
	if !sig.Stop.Equal(decimal.NewFromInt(102)) {
		t.Errorf("sl=%s, want 102", sig.Stop)
	}
	if !sig.Take.Equal(decimal.NewFromInt(112)) {
		t.Errorf("tp=%s, want 112", sig.Take)
	}
	if sig.R != 1.5 {
		t.Errorf("r=%v, want 1.5", sig.R)
	}
	if sig.TS != 1_700_000_000_000 {
		t.Errorf("ts=%d, want injected clock value", sig.TS)
	}
	if sig.Strategy != "breakout_v1" || sig.Reason != "Breakout (20 bars)" {
		t.Errorf("strategy=%q reason=%q", sig.Strategy, sig.Reason)
	}
	if !strings.HasPrefix(sig.ID, "sig_") || len(sig.ID) != 16 {
		t.Errorf("id=%q, want sig_ prefix with 12 hex chars", sig.ID)
	}
}

func TestBreakout_QuietMarketIsSilent(t *testing.T) {
	b := NewBreakout(20)

	// Close exactly at the range high: no breakout.
	if sig := b.OnBar("SBER", flatThenBreak(20, 105, 105.5, 104, 105)); sig != nil {
		t.Errorf("close at range high produced %+v", sig)
	}
	// Close below it.
	if sig := b.OnBar("SBER", flatThenBreak(20, 105, 105, 103, 104)); sig != nil {
		t.Errorf("close inside range produced %+v", sig)
	}
}

func TestBreakout_NeedsFullWindow(t *testing.T) {
	b := NewBreakout(20)
	if sig := b.OnBar("SBER", flatThenBreak(19, 105, 107, 104, 106)); sig != nil {
		t.Errorf("short history produced %+v", sig)
	}
}

func TestBreakout_ZeroRangeFallback(t *testing.T) {
	b := NewBreakout(5)

	bars := flatThenBreak(5, 105, 106, 106, 106)
	sig := b.OnBar("SBER", bars)
	if sig == nil {
		t.Fatal("expected a signal")
	}
	// Degenerate bar: volatility falls back to 0.1% of close.
	wantStop := decimal.NewFromFloat(106 - 2*0.106).Round(2)
	if !sig.Stop.Equal(wantStop) {
		t.Errorf("sl=%s, want %s", sig.Stop, wantStop)
	}
}

func TestBreakout_UniqueIDs(t *testing.T) {
	b := NewBreakout(5)
	bars := flatThenBreak(5, 105, 107, 104, 106)

	a := b.OnBar("SBER", bars)
	c := b.OnBar("SBER", bars)
	if a.ID == c.ID {
		t.Errorf("two signals share id %q", a.ID)
	}
}
