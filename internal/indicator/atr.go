package indicator

import "math"

// ATR calculates the Average True Range with Wilder's smoothing.
//
// The true range at index 0 is high-low; for later indices it is
// max(high-low, |high-prevClose|, |low-prevClose|). The seed ATR is the
// simple average of the first `period` true ranges; the rest are
// smoothed with atr = (atr*(period-1) + tr) / period.
//
// Returns ok=false if len(closes) < period+1.
func ATR(highs, lows, closes []float64, period int) (float64, bool) {
	n := len(closes)
	if period <= 0 || n < period+1 || len(highs) != n || len(lows) != n {
		return 0, false
	}

	trs := make([]float64, n)
	trs[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		trs[i] = math.Max(hl, math.Max(hc, lc))
	}

	atr := 0.0
	for _, tr := range trs[:period] {
		atr += tr
	}
	atr /= float64(period)

	p := float64(period)
	for _, tr := range trs[period:] {
		atr = (atr*(p-1) + tr) / p
	}

	return Round6(atr), true
}
