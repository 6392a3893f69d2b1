package indicator

// MACDResult holds the latest MACD triplet, each rounded to 6 digits.
type MACDResult struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// MACD calculates Moving Average Convergence Divergence.
//
// Full fast and slow EMA series are computed (each seeded with its own
// simple-average window). The series are aligned by index offset
// (slow-1)-(fast-1): fast[i+offset] pairs with slow[i]. The MACD line
// series is their difference; the signal line is EMA(signal) of that
// series, seeded the same way.
//
// Returns ok=false if len(values) < slow+signal, or if the aligned
// MACD-line series is shorter than the signal period.
func MACD(values []float64, fast, slow, signal int) (MACDResult, bool) {
	if fast <= 0 || slow <= 0 || signal <= 0 || len(values) < slow+signal {
		return MACDResult{}, false
	}

	fastSeries := emaSeries(values, fast)
	slowSeries := emaSeries(values, slow)
	if fastSeries == nil || slowSeries == nil {
		return MACDResult{}, false
	}

	// fastSeries[0] sits at values index fast-1, slowSeries[0] at slow-1.
	offset := (slow - 1) - (fast - 1)
	line := make([]float64, 0, len(slowSeries))
	for i := range slowSeries {
		fi := i + offset
		if fi >= len(fastSeries) {
			break
		}
		line = append(line, fastSeries[fi]-slowSeries[i])
	}

	if len(line) < signal {
		return MACDResult{}, false
	}

	k := 2.0 / float64(signal+1)
	sig := 0.0
	for _, v := range line[:signal] {
		sig += v
	}
	sig /= float64(signal)
	for _, v := range line[signal:] {
		sig = v*k + sig*(1-k)
	}

	macdLine := fastSeries[len(fastSeries)-1] - slowSeries[len(slowSeries)-1]
	return MACDResult{
		Line:      Round6(macdLine),
		Signal:    Round6(sig),
		Histogram: Round6(macdLine - sig),
	}, true
}
