package decision

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
)

func buySignal(entry, stop, take float64) *model.Signal {
	return &model.Signal{
		ID:         "sig_test",
		Instrument: "SBER",
		Side:       model.SideBuy,
		Entry:      decimal.NewFromFloat(entry),
		Stop:       decimal.NewFromFloat(stop),
		Take:       decimal.NewFromFloat(take),
		Size:       decimal.NewFromInt(10),
		R:          2.0,
	}
}

func TestCheckInvalidSignal(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*model.Signal)
		wantMsg string // "" means valid
	}{
		{"valid buy", func(s *model.Signal) {}, ""},
		{"zero size", func(s *model.Signal) { s.Size = decimal.Zero }, "Size"},
		{"negative size", func(s *model.Signal) { s.Size = decimal.NewFromInt(-1) }, "Size"},
		{"buy stop above entry", func(s *model.Signal) { s.Stop = decimal.NewFromInt(101) }, "SL must be < Entry"},
		{"buy stop equals entry", func(s *model.Signal) { s.Stop = s.Entry }, "SL must be < Entry"},
		{"buy take below entry", func(s *model.Signal) { s.Take = decimal.NewFromInt(99) }, "TP must be > Entry"},
		{
			"valid sell",
			func(s *model.Signal) {
				s.Side = model.SideSell
				s.Stop = decimal.NewFromInt(102)
				s.Take = decimal.NewFromInt(95)
			},
			"",
		},
		{
			"sell stop below entry",
			func(s *model.Signal) {
				s.Side = model.SideSell
				s.Stop = decimal.NewFromInt(98)
				s.Take = decimal.NewFromInt(95)
			},
			"SL must be > Entry",
		},
		{
			"sell take above entry",
			func(s *model.Signal) {
				s.Side = model.SideSell
				s.Stop = decimal.NewFromInt(102)
				s.Take = decimal.NewFromInt(103)
			},
			"TP must be < Entry",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig := buySignal(100, 98, 105)
			tc.mutate(sig)

			got := checkInvalidSignal(sig)
			if tc.wantMsg == "" {
				if got != nil {
					t.Fatalf("expected valid, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a block reason, got nil")
			}
			if got.Code != model.ReasonInvalidSignal || got.Severity != model.SeverityBlock {
				t.Errorf("reason %+v, want block INVALID_SIGNAL", got)
			}
			if !strings.Contains(got.Msg, tc.wantMsg) {
				t.Errorf("msg %q does not contain %q", got.Msg, tc.wantMsg)
			}
		})
	}
}

func TestCheckVolatilityHard(t *testing.T) {
	// Stop distance 2.0, ATR 1.0 → 2.0 ATR — inside [0.3, 5.0].
	if r := checkVolatilityHard(100, 98, 1.0, 0.3, 5.0); r != nil {
		t.Errorf("in-band stop rejected: %+v", r)
	}
	// 0.2 ATR — too tight.
	if r := checkVolatilityHard(100, 99.8, 1.0, 0.3, 5.0); r == nil || r.Code != model.ReasonVolatilityBad {
		t.Errorf("tight stop not rejected: %+v", r)
	}
	// 6 ATR — too wide.
	if r := checkVolatilityHard(100, 94, 1.0, 0.3, 5.0); r == nil || !strings.Contains(r.Msg, "wide") {
		t.Errorf("wide stop not rejected: %+v", r)
	}
	// Zero ATR gets its own message.
	r := checkVolatilityHard(100, 98, 0, 0.3, 5.0)
	if r == nil || !strings.Contains(r.Msg, "zero") {
		t.Errorf("zero ATR not rejected distinctly: %+v", r)
	}
}

func TestCheckRiskReward(t *testing.T) {
	if r := checkRiskReward(1.0, 1.5); r == nil || r.Code != model.ReasonRRTooLow {
		t.Errorf("r=1.0 vs target 1.5 must block, got %+v", r)
	}
	if r := checkRiskReward(1.5, 1.5); r != nil {
		t.Errorf("r at target must pass, got %+v", r)
	}
}

func TestScoreRegime(t *testing.T) {
	// BUY: price above EMA and slope rising → full credit.
	s, rs := scoreRegime(105, 100, 99, model.SideBuy, 20)
	if s != 20 {
		t.Errorf("aligned BUY regime score=%d, want 20", s)
	}
	if len(rs) != 1 || rs[0].Severity != model.SeverityInfo {
		t.Errorf("expected one info reason, got %+v", rs)
	}

	// BUY above EMA but slope falling → 0 with a warning.
	s, rs = scoreRegime(105, 100, 101, model.SideBuy, 20)
	if s != 0 || rs[0].Severity != model.SeverityWarn {
		t.Errorf("counter-slope BUY: score=%d reasons=%+v", s, rs)
	}

	// SELL: below EMA and slope falling → full credit.
	s, _ = scoreRegime(95, 100, 101, model.SideSell, 20)
	if s != 20 {
		t.Errorf("aligned SELL regime score=%d, want 20", s)
	}
}

func TestScoreVolatility(t *testing.T) {
	// 1.0 ATR inside [0.6, 2.5] → full credit.
	s, rs := scoreVolatility(100, 99, 1.0, 0.6, 2.5, 15)
	if s != 15 || rs[0].Code != model.ReasonVolatilitySanityOK {
		t.Errorf("in-band: score=%d reasons=%+v", s, rs)
	}
	// 3.0 ATR outside the soft band → one-third credit.
	s, rs = scoreVolatility(100, 97, 1.0, 0.6, 2.5, 15)
	if s != 5 || rs[0].Severity != model.SeverityWarn {
		t.Errorf("out-of-band: score=%d reasons=%+v", s, rs)
	}
	// Zero ATR → 0, warn.
	if s, _ := scoreVolatility(100, 99, 0, 0.6, 2.5, 15); s != 0 {
		t.Errorf("zero ATR score=%d, want 0", s)
	}
}

func TestScoreMomentum_SubWeightSplit(t *testing.T) {
	// weight 15 → RSI sub-weight int(15*0.67)=10, MACD remainder 5.
	s, _ := scoreMomentum(50, 1.0, model.SideBuy, 15)
	if s != 15 {
		t.Errorf("BUY rsi=50 hist>0: score=%d, want 15", s)
	}

	// Overbought RSI keeps only the MACD part.
	s, rs := scoreMomentum(75, 1.0, model.SideBuy, 15)
	if s != 5 {
		t.Errorf("BUY rsi=75 hist>0: score=%d, want 5", s)
	}
	found := false
	for _, r := range rs {
		if r.Code == model.ReasonRSIOverheat {
			found = true
		}
	}
	if !found {
		t.Errorf("expected RSI_OVERHEAT in %+v", rs)
	}

	// SELL: oversold RSI and rising histogram → nothing.
	s, rs = scoreMomentum(25, 1.0, model.SideSell, 15)
	if s != 0 {
		t.Errorf("SELL rsi=25 hist>0: score=%d, want 0", s)
	}
	found = false
	for _, r := range rs {
		if r.Code == model.ReasonRSIOversold {
			found = true
		}
	}
	if !found {
		t.Errorf("expected RSI_OVERSOLD in %+v", rs)
	}

	// SELL aligned: rsi in [30,55], histogram negative → full.
	if s, _ := scoreMomentum(40, -0.5, model.SideSell, 15); s != 15 {
		t.Errorf("aligned SELL momentum score=%d, want 15", s)
	}
}

func TestScoreLevels_ClampAtFullWeight(t *testing.T) {
	// Level beyond the TP: ratio 2.0 clamps to 1.0 → exactly the
	// weight, never more.
	level := 120.0
	s, rs := scoreLevels(100, 110, &level, 20)
	if s != 20 {
		t.Fatalf("clamped level score=%d, want 20", s)
	}
	if rs[0].Code != model.ReasonLevelClearanceOK {
		t.Errorf("expected LEVEL_CLEARANCE_OK, got %+v", rs)
	}
}

func TestScoreLevels_UnknownIsNeutral(t *testing.T) {
	s, rs := scoreLevels(100, 110, nil, 20)
	if s != 10 {
		t.Fatalf("unknown level score=%d, want 10 (half credit)", s)
	}
	if len(rs) != 1 || rs[0].Code != model.ReasonLevelUnknown || rs[0].Severity != model.SeverityInfo {
		t.Errorf("expected info LEVEL_UNKNOWN, got %+v", rs)
	}
}

func TestScoreLevels_TooCloseAndZeroTakeDistance(t *testing.T) {
	// ratio = 3/10 = 0.3 → floor(20*0.3) = 6, warn.
	level := 103.0
	s, rs := scoreLevels(100, 110, &level, 20)
	if s != 6 || rs[0].Code != model.ReasonLevelTooClose {
		t.Errorf("close level: score=%d reasons=%+v", s, rs)
	}

	// Zero take-profit distance is guarded: 0 score, no reason.
	s, rs = scoreLevels(100, 100, &level, 20)
	if s != 0 || len(rs) != 0 {
		t.Errorf("zero TP distance: score=%d reasons=%+v", s, rs)
	}
}

func TestNearestOpposingLevel(t *testing.T) {
	highs := []float64{105, 101, 110, 95}
	lows := []float64{99, 96, 104, 90}

	// BUY at 100: lowest high strictly above entry = 101.
	got := nearestOpposingLevel(100, highs, lows, model.SideBuy, 50)
	if got == nil || *got != 101 {
		t.Errorf("BUY nearest resistance=%v, want 101", got)
	}

	// SELL at 100: highest low strictly below entry = 99.
	got = nearestOpposingLevel(100, highs, lows, model.SideSell, 50)
	if got == nil || *got != 99 {
		t.Errorf("SELL nearest support=%v, want 99", got)
	}

	// Window restricts the scan to the most recent bars.
	got = nearestOpposingLevel(100, highs, lows, model.SideBuy, 1)
	if got != nil {
		t.Errorf("window=1 sees only high=95, want nil, got %v", got)
	}

	// No level above entry at all.
	got = nearestOpposingLevel(200, highs, lows, model.SideBuy, 50)
	if got != nil {
		t.Errorf("no resistance above 200, want nil, got %v", got)
	}
}

func TestScoreCosts(t *testing.T) {
	// No costs: profit 6, loss 2 → RR 3.0 → full credit.
	s, rs := scoreCosts(100, 98, 106, 0, 0, 15)
	if s != 15 || rs[0].Code != model.ReasonCostsOK {
		t.Errorf("free trading: score=%d reasons=%+v", s, rs)
	}

	// 3+5 bps on entry 100 → cost 0.08/side; profit 3-0.16=2.84,
	// loss 2+0.16=2.16 → RR 1.31 → one-third credit.
	s, rs = scoreCosts(100, 98, 103, 3, 5, 15)
	if s != 5 || rs[0].Code != model.ReasonCostsTooHigh {
		t.Errorf("thin edge: score=%d reasons=%+v", s, rs)
	}

	// Heavy costs flip the expectancy negative → 0.
	s, rs = scoreCosts(100, 99, 101, 100, 100, 15)
	if s != 0 || !strings.Contains(rs[0].Msg, "Negative") {
		t.Errorf("negative expectancy: score=%d reasons=%+v", s, rs)
	}
}

func TestScoreLiquidity_Stub(t *testing.T) {
	s, rs := scoreLiquidity(5)
	if s != 5 {
		t.Errorf("liquidity stub score=%d, want full weight", s)
	}
	if rs[0].Code != model.ReasonLiquidityUnknown || rs[0].Severity != model.SeverityInfo {
		t.Errorf("expected info LIQUIDITY_UNKNOWN, got %+v", rs)
	}
}
