package indicator

// EMA calculates the Exponential Moving Average of values.
//
// The first EMA value is seeded with the simple average of the first
// `period` values, then the standard recurrence is applied:
//
//	k   = 2 / (period + 1)
//	ema = value*k + ema*(1-k)
//
// Returns ok=false if len(values) < period.
func EMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}

	k := 2.0 / float64(period+1)

	sum := 0.0
	for _, v := range values[:period] {
		sum += v
	}
	ema := sum / float64(period)

	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
	}

	return Round6(ema), true
}

// emaSeries computes the full EMA series (one value per input index
// starting at period-1), unrounded. Used by MACD, which needs the whole
// aligned series rather than just the latest value.
func emaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)

	sum := 0.0
	for _, v := range values[:period] {
		sum += v
	}
	ema := sum / float64(period)
	out = append(out, ema)

	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
		out = append(out, ema)
	}

	return out
}
