package decision

import (
	"fmt"
	"math"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
)

// ─── Hard checks ──────────────────────────────────────────────────────────────
//
// Each returns a block-severity Reason on violation, nil otherwise.
// Any hit short-circuits the evaluation to REJECT with score 0.

// checkInvalidSignal validates the candidate's price geometry.
// BUY requires stop < entry < take; SELL requires take < entry < stop.
// Comparisons are exact decimal comparisons, no float rounding.
func checkInvalidSignal(sig *model.Signal) *model.Reason {
	if !sig.Size.IsPositive() {
		return blockReason(model.ReasonInvalidSignal, "Size must be > 0")
	}

	switch sig.Side {
	case model.SideBuy:
		if sig.Stop.Cmp(sig.Entry) >= 0 {
			return blockReason(model.ReasonInvalidSignal, "BUY: SL must be < Entry")
		}
		if sig.Take.Cmp(sig.Entry) <= 0 {
			return blockReason(model.ReasonInvalidSignal, "BUY: TP must be > Entry")
		}
	case model.SideSell:
		if sig.Stop.Cmp(sig.Entry) <= 0 {
			return blockReason(model.ReasonInvalidSignal, "SELL: SL must be > Entry")
		}
		if sig.Take.Cmp(sig.Entry) >= 0 {
			return blockReason(model.ReasonInvalidSignal, "SELL: TP must be < Entry")
		}
	default:
		return blockReason(model.ReasonInvalidSignal, fmt.Sprintf("Unknown side %q", sig.Side))
	}

	return nil
}

// checkVolatilityHard rejects stops outside the hard ATR-distance band.
func checkVolatilityHard(entry, stop, atr, minDist, maxDist float64) *model.Reason {
	if atr <= 0 {
		return blockReason(model.ReasonVolatilityBad, "ATR is zero/negative")
	}

	slATR := math.Abs(entry-stop) / atr
	if slATR < minDist {
		return blockReason(model.ReasonVolatilityBad, fmt.Sprintf("Stop too tight (%.2f ATR)", slATR))
	}
	if slATR > maxDist {
		return blockReason(model.ReasonVolatilityBad, fmt.Sprintf("Stop too wide (%.2f ATR)", slATR))
	}
	return nil
}

// checkRiskReward rejects signals whose risk-multiple is below target.
func checkRiskReward(r, target float64) *model.Reason {
	if r < target {
		return blockReason(model.ReasonRRTooLow, fmt.Sprintf("R is too low (%.2f < %g)", r, target))
	}
	return nil
}

// ─── Soft scorers ─────────────────────────────────────────────────────────────
//
// Each returns an integer contribution in [0, weight] plus explanatory
// reasons. They run only once no hard check fired.

// scoreRegime grants full credit iff price is on the trend side of the
// EMA and the EMA slope agrees with the side.
func scoreRegime(close, ema, emaPrev float64, side model.Side, weight int) (int, []model.Reason) {
	slope := ema - emaPrev

	if side == model.SideBuy && close > ema && slope > 0 {
		return weight, []model.Reason{infoReason(model.ReasonRegimeMatch, "Uptrend confirmed (Price > EMA, Slope > 0)")}
	}
	if side == model.SideSell && close < ema && slope < 0 {
		return weight, []model.Reason{infoReason(model.ReasonRegimeMatch, "Downtrend confirmed (Price < EMA, Slope < 0)")}
	}
	return 0, []model.Reason{warnReason(model.ReasonRegimeMatch, "Aggressive entry (Counter-trend or Flat)")}
}

// scoreVolatility grants full credit for a stop distance inside the
// soft ATR band, one-third credit outside it.
func scoreVolatility(entry, stop, atr, minSoft, maxSoft float64, weight int) (int, []model.Reason) {
	if atr <= 0 {
		return 0, []model.Reason{warnReason(model.ReasonVolatilityBad, "ATR is zero/negative")}
	}

	slATR := math.Abs(entry-stop) / atr
	if slATR >= minSoft && slATR <= maxSoft {
		return weight, []model.Reason{infoReason(model.ReasonVolatilitySanityOK, fmt.Sprintf("Stop distance valid (%.2f ATR)", slATR))}
	}
	return weight / 3, []model.Reason{warnReason(model.ReasonVolatilityBad, fmt.Sprintf("Stop distance suspicious (%.2f ATR)", slATR))}
}

// scoreMomentum splits the weight ~67/33 between an RSI band check and
// a MACD-histogram sign check. The RSI sub-weight is the integer
// truncation of weight*0.67; MACD takes the remainder.
func scoreMomentum(rsi, macdHist float64, side model.Side, weight int) (int, []model.Reason) {
	rsiWeight := int(float64(weight) * 0.67)
	macdWeight := weight - rsiWeight

	score := 0
	var reasons []model.Reason

	switch side {
	case model.SideBuy:
		switch {
		case rsi >= 45 && rsi <= 70:
			score += rsiWeight
			reasons = append(reasons, infoReason(model.ReasonMomentumOK, fmt.Sprintf("RSI bullish (%.1f)", rsi)))
		case rsi > 70:
			reasons = append(reasons, warnReason(model.ReasonRSIOverheat, fmt.Sprintf("RSI Overbought (%.1f)", rsi)))
		default:
			reasons = append(reasons, warnReason(model.ReasonMomentumWeak, fmt.Sprintf("RSI weak (%.1f)", rsi)))
		}

		if macdHist > 0 {
			score += macdWeight
			reasons = append(reasons, infoReason(model.ReasonMomentumOK, "MACD Hist > 0"))
		} else {
			reasons = append(reasons, warnReason(model.ReasonMomentumWeak, "MACD Hist < 0"))
		}

	case model.SideSell:
		switch {
		case rsi >= 30 && rsi <= 55:
			score += rsiWeight
			reasons = append(reasons, infoReason(model.ReasonMomentumOK, fmt.Sprintf("RSI bearish (%.1f)", rsi)))
		case rsi < 30:
			reasons = append(reasons, warnReason(model.ReasonRSIOversold, fmt.Sprintf("RSI Oversold (%.1f)", rsi)))
		default:
			reasons = append(reasons, warnReason(model.ReasonMomentumWeak, fmt.Sprintf("RSI weak (%.1f)", rsi)))
		}

		if macdHist < 0 {
			score += macdWeight
			reasons = append(reasons, infoReason(model.ReasonMomentumOK, "MACD Hist < 0"))
		} else {
			reasons = append(reasons, warnReason(model.ReasonMomentumWeak, "MACD Hist > 0"))
		}
	}

	return score, reasons
}

// scoreLevels rates the clearance between entry and the nearest
// opposing level relative to the take-profit distance.
//
// ratio = |entry-level| / |entry-takeProfit|, clamped to [0,1];
// score = floor(weight*ratio). A missing level is neutral: half credit
// with an informational reason, never a penalty. A zero take-profit
// distance scores 0 with no reason.
func scoreLevels(entry, take float64, nearestLevel *float64, weight int) (int, []model.Reason) {
	if nearestLevel == nil {
		return weight / 2, []model.Reason{infoReason(model.ReasonLevelUnknown, "No level found in window")}
	}

	takeDist := math.Abs(entry - take)
	if takeDist == 0 {
		return 0, nil
	}

	ratio := math.Abs(entry-*nearestLevel) / takeDist
	ratio = math.Max(0, math.Min(ratio, 1))

	score := int(float64(weight) * ratio)
	if ratio >= 0.7 {
		return score, []model.Reason{infoReason(model.ReasonLevelClearanceOK, fmt.Sprintf("Room to move (Ratio %.2f)", ratio))}
	}
	return score, []model.Reason{warnReason(model.ReasonLevelTooClose, fmt.Sprintf("Level too close (Ratio %.2f)", ratio))}
}

// nearestOpposingLevel scans the most recent `window` bars for the
// opposing level in the direction of the take-profit: for BUY, the
// lowest high strictly above entry (nearest resistance); for SELL, the
// highest low strictly below entry (nearest support). Returns nil when
// no such level exists in the window.
func nearestOpposingLevel(entry float64, highs, lows []float64, side model.Side, window int) *float64 {
	start := 0
	if len(highs) > window {
		start = len(highs) - window
	}

	var level *float64
	if side == model.SideBuy {
		for _, h := range highs[start:] {
			h := h
			if h > entry && (level == nil || h < *level) {
				level = &h
			}
		}
	} else {
		for _, l := range lows[start:] {
			l := l
			if l < entry && (level == nil || l > *level) {
				level = &l
			}
		}
	}
	return level
}

// scoreCosts applies the flat-rate cost model: fees+slippage basis
// points as a price fraction charged on both entry and exit, then
// rates the net reward-to-risk after costs.
func scoreCosts(entry, stop, take float64, feesBps, slippageBps, weight int) (int, []model.Reason) {
	costPrice := entry * float64(feesBps+slippageBps) / 10000.0

	netProfit := math.Abs(take-entry) - 2*costPrice
	netLoss := math.Abs(entry-stop) + 2*costPrice

	if netLoss <= 0 {
		return 0, []model.Reason{warnReason(model.ReasonCostsTooHigh, "Costs exceed risk")}
	}

	rr := netProfit / netLoss
	switch {
	case rr >= 1.5:
		return weight, []model.Reason{infoReason(model.ReasonCostsOK, fmt.Sprintf("Net RR %.2f OK", rr))}
	case rr > 1.0:
		return weight / 3, []model.Reason{warnReason(model.ReasonCostsTooHigh, fmt.Sprintf("Net RR %.2f Low", rr))}
	default:
		return 0, []model.Reason{warnReason(model.ReasonCostsTooHigh, fmt.Sprintf("Net RR %.2f Negative Exp", rr))}
	}
}

// scoreLiquidity is a stub: always full credit until a real depth/
// volume check exists.
func scoreLiquidity(weight int) (int, []model.Reason) {
	return weight, []model.Reason{infoReason(model.ReasonLiquidityUnknown, "Liquidity assumed (stub)")}
}

// ─── Reason constructors ──────────────────────────────────────────────────────

func blockReason(code model.ReasonCode, msg string) *model.Reason {
	return &model.Reason{Code: code, Severity: model.SeverityBlock, Msg: msg}
}

func warnReason(code model.ReasonCode, msg string) model.Reason {
	return model.Reason{Code: code, Severity: model.SeverityWarn, Msg: msg}
}

func infoReason(code model.ReasonCode, msg string) model.Reason {
	return model.Reason{Code: code, Severity: model.SeverityInfo, Msg: msg}
}
