package indicator

// RSI calculates the Relative Strength Index using Wilder's smoothing.
//
// The initial average gain/loss is the simple average over the first
// `period` deltas; the remaining deltas are smoothed with
// avg = (avg*(period-1) + new) / period. When the final average loss is
// exactly zero the RSI is 100.
//
// Returns ok=false if len(values) < period+1.
func RSI(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period+1 {
		return 0, false
	}

	deltas := len(values) - 1
	var avgGain, avgLoss float64

	for i := 0; i < period; i++ {
		delta := values[i+1] - values[i]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	p := float64(period)
	for i := period; i < deltas; i++ {
		delta := values[i+1] - values[i]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		return 100.0, true
	}

	rs := avgGain / avgLoss
	return Round6(100.0 - 100.0/(1.0+rs)), true
}
