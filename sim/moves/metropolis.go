package moves

import (
	"math"
)

// Probability is the Metropolis acceptance probability min(1, exp(-dE/T)).
//
// Downhill and neutral trials return 1 without evaluating the exponential.
// A NaN energy difference or a non-positive temperature with dE > 0 returns 0.
func Probability(dE, temperature float64) float64 {
	switch {
	case math.IsNaN(dE):
		return 0
	case dE <= 0:
		return 1
	case !(temperature > 0):
		return 0
	}
	return math.Exp(-dE / temperature)
}

// Metropolis decides a trial against the uniform draw r in [0, 1).
// A zero probability rejects even when r is 0.
func Metropolis(dE, temperature, r float64) bool {
	p := Probability(dE, temperature)
	return p > 0 && p >= r
}
