// Package decision evaluates candidate trade signals against bar
// history and a weighted rule model, producing an auditable
// TAKE/SKIP/REJECT result.
//
// Evaluate is deterministic and side-effect-free: identical (signal,
// bars, settings) inputs always yield an identical result. All
// abnormal conditions surface as typed Reasons, never as errors or
// panics.
package decision

import (
	"fmt"
	"math"
	"sort"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/history"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/indicator"
	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
)

// Fixed analysis parameters. The bars slice is expected to end with the
// current forming bar when one exists; indicators run over the whole
// series.
const (
	minHistoryBars = 50 // hard floor below which evaluation rejects
	levelWindow    = 50 // bars scanned for the nearest opposing level

	emaPeriod  = 50
	rsiPeriod  = 14
	atrPeriod  = 14
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// Evaluate runs the full decision pipeline for one candidate signal
// against the given bar snapshot and settings value.
func Evaluate(sig *model.Signal, bars []model.Bar, set model.Settings) model.DecisionResult {
	var reasons []model.Reason
	metrics := make(map[string]any)
	threshold := set.Threshold()

	// 1. Invalid signal geometry.
	if r := checkInvalidSignal(sig); r != nil {
		reasons = append(reasons, *r)
		return finalize(model.DecisionReject, 0, 0, 0, threshold, reasons, metrics)
	}

	// 2. Data sufficiency.
	if len(bars) < minHistoryBars {
		reasons = append(reasons, *blockReason(model.ReasonNoMarketData,
			fmt.Sprintf("Not enough bars (%d)", len(bars))))
		return finalize(model.DecisionReject, 0, 0, 0, threshold, reasons, metrics)
	}

	closes, highs, lows := history.Series(bars)

	// 3. Indicators, computed once.
	ema, emaOK := indicator.EMA(closes, emaPeriod)
	emaPrev, emaPrevOK := indicator.EMA(closes[:len(closes)-1], emaPeriod)
	rsi, rsiOK := indicator.RSI(closes, rsiPeriod)
	atr, atrOK := indicator.ATR(highs, lows, closes, atrPeriod)
	macd, macdOK := indicator.MACD(closes, macdFast, macdSlow, macdSignal)

	if !emaOK || !rsiOK || !atrOK || !macdOK {
		reasons = append(reasons, *blockReason(model.ReasonNoMarketData, "Indicators unavailable"))
		return finalize(model.DecisionReject, 0, 0, 0, threshold, reasons, metrics)
	}
	if !emaPrevOK {
		// History of exactly emaPeriod bars: no previous-bar EMA yet,
		// treat the slope as flat.
		emaPrev = ema
	}

	metrics["ema50"] = ema
	metrics["rsi14"] = rsi
	metrics["atr14"] = atr
	metrics["macd_hist"] = macd.Histogram

	entry := sig.Entry.InexactFloat64()
	stop := sig.Stop.InexactFloat64()
	take := sig.Take.InexactFloat64()

	// 4. Post-indicator hard checks. Both run so a rejection carries
	// every violated constraint, not just the first.
	hardMin, hardMax := set.HardStopBand()
	if r := checkVolatilityHard(entry, stop, atr, hardMin, hardMax); r != nil {
		reasons = append(reasons, *r)
	}
	if r := checkRiskReward(sig.R, set.MinRR()); r != nil {
		reasons = append(reasons, *r)
	}
	if len(reasons) > 0 {
		return finalize(model.DecisionReject, 0, 0, 0, threshold, reasons, metrics)
	}

	// 5. Soft scorers with resolved weights.
	w := set.ResolveWeights()
	raw := 0

	s, rs := scoreRegime(closes[len(closes)-1], ema, emaPrev, sig.Side, w.Regime)
	raw += s
	reasons = append(reasons, rs...)

	softMin, softMax := set.SoftStopBand()
	s, rs = scoreVolatility(entry, stop, atr, softMin, softMax, w.Volatility)
	raw += s
	reasons = append(reasons, rs...)
	metrics["sl_atr"] = round2(math.Abs(entry-stop) / atr)

	s, rs = scoreMomentum(rsi, macd.Histogram, sig.Side, w.Momentum)
	raw += s
	reasons = append(reasons, rs...)

	level := nearestOpposingLevel(entry, highs, lows, sig.Side, levelWindow)
	if level != nil {
		metrics["nearest_level"] = *level
	} else {
		metrics["nearest_level"] = nil
	}
	s, rs = scoreLevels(entry, take, level, w.Levels)
	raw += s
	reasons = append(reasons, rs...)

	feesBps, slippageBps := set.Costs()
	s, rs = scoreCosts(entry, stop, take, feesBps, slippageBps, w.Costs)
	raw += s
	reasons = append(reasons, rs...)

	s, rs = scoreLiquidity(w.Liquidity)
	raw += s
	reasons = append(reasons, rs...)

	// 6. Normalize and decide.
	max := w.Sum()
	pct := 0
	if max > 0 {
		// Round half-up on the real quotient.
		pct = int(math.Floor(float64(raw)/float64(max)*100 + 0.5))
	}

	dec := model.DecisionSkip
	if pct >= threshold {
		dec = model.DecisionTake
	}

	return finalize(dec, pct, raw, max, threshold, reasons, metrics)
}

// finalize bundles the outcome into an immutable result with reasons
// sorted by severity rank (block < warn < info) then code, stable.
func finalize(dec model.Decision, pct, raw, max, threshold int, reasons []model.Reason, metrics map[string]any) model.DecisionResult {
	sorted := make([]model.Reason, len(reasons))
	copy(sorted, reasons)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].Severity.Rank(), sorted[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return sorted[i].Code < sorted[j].Code
	})

	return model.DecisionResult{
		Decision:     dec,
		ScorePct:     pct,
		ThresholdPct: threshold,
		ScoreRaw:     raw,
		ScoreMax:     max,
		Reasons:      sorted,
		Metrics:      metrics,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
