package model

// Default settings values. A nil field in Settings falls back to its
// default; an explicit zero is honored as zero.
const (
	DefaultDecisionThreshold = 70
	DefaultRRMin             = 1.5
	DefaultATRStopHardMin    = 0.3
	DefaultATRStopHardMax    = 5.0
	DefaultATRStopSoftMin    = 0.6
	DefaultATRStopSoftMax    = 2.5
	DefaultWeightRegime      = 20
	DefaultWeightVolatility  = 15
	DefaultWeightMomentum    = 15
	DefaultWeightLevels      = 20
	DefaultWeightCosts       = 15
	DefaultWeightLiquidity   = 5
	DefaultFeesBps           = 3
	DefaultSlippageBps       = 5
)

// Settings is the numeric configuration snapshot for one evaluation.
// It is an immutable value: the engine reads it once per call and never
// mutates it. Pointer fields distinguish "unset" (use default) from an
// explicit value, matching the stored JSON representation.
type Settings struct {
	DecisionThreshold *int     `json:"decision_threshold,omitempty"`
	RRMin             *float64 `json:"rr_min,omitempty"`

	ATRStopHardMin *float64 `json:"atr_stop_hard_min,omitempty"`
	ATRStopHardMax *float64 `json:"atr_stop_hard_max,omitempty"`
	ATRStopSoftMin *float64 `json:"atr_stop_soft_min,omitempty"`
	ATRStopSoftMax *float64 `json:"atr_stop_soft_max,omitempty"`

	WRegime     *int `json:"w_regime,omitempty"`
	WVolatility *int `json:"w_volatility,omitempty"`
	WMomentum   *int `json:"w_momentum,omitempty"`
	WLevels     *int `json:"w_levels,omitempty"`
	WCosts      *int `json:"w_costs,omitempty"`
	WLiquidity  *int `json:"w_liquidity,omitempty"`

	FeesBps     *int `json:"fees_bps,omitempty"`
	SlippageBps *int `json:"slippage_bps,omitempty"`
}

// Weights holds the resolved per-category soft-scorer weights.
type Weights struct {
	Regime     int
	Volatility int
	Momentum   int
	Levels     int
	Costs      int
	Liquidity  int
}

// Sum returns the total of all active weights (the score_max).
func (w Weights) Sum() int {
	return w.Regime + w.Volatility + w.Momentum + w.Levels + w.Costs + w.Liquidity
}

// Threshold resolves the TAKE cutoff percentage.
func (s Settings) Threshold() int {
	return intOr(s.DecisionThreshold, DefaultDecisionThreshold)
}

// MinRR resolves the minimum acceptable risk-reward multiple.
func (s Settings) MinRR() float64 {
	return floatOr(s.RRMin, DefaultRRMin)
}

// HardStopBand resolves the hard-reject stop-distance band in ATR units.
func (s Settings) HardStopBand() (min, max float64) {
	return floatOr(s.ATRStopHardMin, DefaultATRStopHardMin),
		floatOr(s.ATRStopHardMax, DefaultATRStopHardMax)
}

// SoftStopBand resolves the soft stop-distance band in ATR units.
func (s Settings) SoftStopBand() (min, max float64) {
	return floatOr(s.ATRStopSoftMin, DefaultATRStopSoftMin),
		floatOr(s.ATRStopSoftMax, DefaultATRStopSoftMax)
}

// ResolveWeights resolves all six scorer weights.
func (s Settings) ResolveWeights() Weights {
	return Weights{
		Regime:     intOr(s.WRegime, DefaultWeightRegime),
		Volatility: intOr(s.WVolatility, DefaultWeightVolatility),
		Momentum:   intOr(s.WMomentum, DefaultWeightMomentum),
		Levels:     intOr(s.WLevels, DefaultWeightLevels),
		Costs:      intOr(s.WCosts, DefaultWeightCosts),
		Liquidity:  intOr(s.WLiquidity, DefaultWeightLiquidity),
	}
}

// Costs resolves the fee and slippage rates in basis points.
func (s Settings) Costs() (feesBps, slippageBps int) {
	return intOr(s.FeesBps, DefaultFeesBps), intOr(s.SlippageBps, DefaultSlippageBps)
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

func floatOr(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}
