package strategy

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/history"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
)

// DefaultLookback is the range window for the breakout detector.
const DefaultLookback = 20

// Breakout proposes a long when the latest close breaks above the high
// of the preceding lookback window. Longs only: shorts on TQBR need
// margin handling this bot does not do.
//
// Stop and take derive from the last bar's range as a cheap volatility
// proxy: sl = close - 2*range, tp = close + 3*range, a fixed 1.5R
// geometry before costs.
type Breakout struct {
	lookback int
	size     decimal.Decimal

	now func() time.Time
}

// NewBreakout returns a detector over the given range window. A
// lookback below 2 falls back to DefaultLookback.
func NewBreakout(lookback int) *Breakout {
	if lookback < 2 {
		lookback = DefaultLookback
	}
	return &Breakout{
		lookback: lookback,
		size:     decimal.NewFromInt(10),
		now:      time.Now,
	}
}

func (b *Breakout) Name() string {
	return "breakout_v1"
}

func (b *Breakout) OnBar(instrument string, bars []model.Bar) *model.Signal {
	if len(bars) < b.lookback {
		return nil
	}

	window := bars[len(bars)-b.lookback:]
	closes, highs, lows := history.Series(window)

	last := len(window) - 1
	lastClose := closes[last]

	// Range of the window excluding the bar being judged.
	rangeHigh := highs[0]
	for _, h := range highs[:last] {
		if h > rangeHigh {
			rangeHigh = h
		}
	}

	if lastClose <= rangeHigh {
		return nil
	}

	volatility := highs[last] - lows[last]
	if volatility == 0 {
		volatility = lastClose * 0.001
	}

	return &model.Signal{
		ID:         signalID(),
		Instrument: instrument,
		TS:         b.now().UnixMilli(),
		Side:       model.SideBuy,
		Entry:      decimal.NewFromFloat(lastClose).Round(2),
		Stop:       decimal.NewFromFloat(lastClose - volatility*2.0).Round(2),
		Take:       decimal.NewFromFloat(lastClose + volatility*3.0).Round(2),
		Size:       b.size,
		R:          1.5,
		Strategy:   b.Name(),
		Reason:     fmt.Sprintf("Breakout (%d bars)", b.lookback),
	}
}

// signalID returns a short random id like "sig_9f2c41d08ab3".
func signalID() string {
	u := uuid.New()
	return "sig_" + hex.EncodeToString(u[:6])
}
