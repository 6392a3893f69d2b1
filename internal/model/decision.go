package model

import "encoding/json"

// Decision is the terminal outcome of one evaluation.
type Decision string

const (
	DecisionTake   Decision = "TAKE"
	DecisionSkip   Decision = "SKIP"
	DecisionReject Decision = "REJECT"
)

// Severity classifies a Reason. Block reasons force REJECT regardless
// of any soft score.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityBlock Severity = "block"
)

// Rank returns the presentation order of a severity: block < warn < info.
func (s Severity) Rank() int {
	switch s {
	case SeverityBlock:
		return 0
	case SeverityWarn:
		return 1
	case SeverityInfo:
		return 2
	}
	return 99
}

// ReasonCode is the closed set of causes a Reason can carry.
type ReasonCode string

const (
	// Hard blocks
	ReasonInvalidSignal ReasonCode = "INVALID_SIGNAL"
	ReasonNoMarketData  ReasonCode = "NO_MARKET_DATA"
	ReasonRRTooLow      ReasonCode = "RR_TOO_LOW"

	// Soft scoring
	ReasonRegimeMatch        ReasonCode = "REGIME_MATCH"
	ReasonVolatilitySanityOK ReasonCode = "VOLATILITY_SANITY_OK"
	ReasonVolatilityBad      ReasonCode = "VOLATILITY_SANITY_BAD"
	ReasonMomentumOK         ReasonCode = "MOMENTUM_OK"
	ReasonMomentumWeak       ReasonCode = "MOMENTUM_WEAK"
	ReasonRSIOverheat        ReasonCode = "RSI_OVERHEAT"
	ReasonRSIOversold        ReasonCode = "RSI_OVERSOLD"
	ReasonLevelClearanceOK   ReasonCode = "LEVEL_CLEARANCE_OK"
	ReasonLevelTooClose      ReasonCode = "LEVEL_TOO_CLOSE"
	ReasonLevelUnknown       ReasonCode = "LEVEL_UNKNOWN"
	ReasonCostsOK            ReasonCode = "COSTS_OK"
	ReasonCostsTooHigh       ReasonCode = "COSTS_TOO_HIGH"
	ReasonLiquidityUnknown   ReasonCode = "LIQUIDITY_UNKNOWN"
)

// Reason explains one aspect of a decision. Multiple reasons co-occur;
// they are sorted by severity rank, then code, for presentation.
type Reason struct {
	Code     ReasonCode `json:"code"`
	Severity Severity   `json:"severity"`
	Msg      string     `json:"msg"`
}

// DecisionResult is the immutable outcome of one evaluation call.
// ScorePct is the normalized 0-100 percentage used for the TAKE/SKIP
// cut; ScoreRaw/ScoreMax expose the unnormalized tally for calibration.
// Metrics is a named numeric snapshot of the indicator state the
// decision was based on (keys: ema50, rsi14, atr14, macd_hist, sl_atr,
// nearest_level). Absent metrics are simply omitted.
type DecisionResult struct {
	Decision     Decision       `json:"decision"`
	ScorePct     int            `json:"score_pct"`
	ThresholdPct int            `json:"threshold_pct"`
	ScoreRaw     int            `json:"score_raw"`
	ScoreMax     int            `json:"score_max"`
	Reasons      []Reason       `json:"reasons"`
	Metrics      map[string]any `json:"metrics"`
}

// JSON returns the JSON-encoded result. Map keys serialize in sorted
// order, so identical results encode to identical bytes.
func (r *DecisionResult) JSON() []byte {
	out, _ := json.Marshal(r)
	return out
}

// HasBlock reports whether any reason carries block severity.
func (r *DecisionResult) HasBlock() bool {
	for _, reason := range r.Reasons {
		if reason.Severity == SeverityBlock {
			return true
		}
	}
	return false
}
