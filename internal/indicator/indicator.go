// Package indicator provides technical indicator calculations over bar
// history series.
//
// All indicators are pure functions of price slices: no internal state,
// no I/O, deterministic for identical inputs. Each returns ok=false
// while the series is shorter than its warm-up requirement; callers
// treat that as a "no market data" condition, never an error.
package indicator

import "math"

// Round6 rounds a value to 6 fractional digits, the precision carried
// on all published indicator values.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
