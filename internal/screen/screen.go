// Package screen implements the statistical pre-screen that shrinks the
// transaction payload before it reaches the model. It is a cost/latency
// device, not a fraud determination.
package screen

import (
	"math"

	"github.com/dvloznov/insight-agent/internal/domain"
)

// epsilon keeps the threshold band non-degenerate when all amounts are equal.
const epsilon = 1e-9

// Outliers returns the transactions whose absolute amount exceeds
// mean + 3*max(stddev, epsilon) of the absolute amounts. With fast=false the
// input passes through untouched. When nothing exceeds the threshold the full
// original set is returned: an empty anomaly set must not silently skip the
// analysis downstream.
func Outliers(txns []domain.Transaction, fast bool) []domain.Transaction {
	if !fast || len(txns) == 0 {
		return txns
	}

	mean, stddev := Stats(txns)
	threshold := mean + 3*math.Max(stddev, epsilon)

	var flagged []domain.Transaction
	for _, t := range txns {
		if math.Abs(t.Amount) > threshold {
			flagged = append(flagged, t)
		}
	}
	if len(flagged) == 0 {
		return txns
	}
	return flagged
}

// Stats computes the mean and population standard deviation of absolute
// amounts. Stddev is zero for fewer than two values.
func Stats(txns []domain.Transaction) (mean, stddev float64) {
	if len(txns) == 0 {
		return 0, 0
	}
	for _, t := range txns {
		mean += math.Abs(t.Amount)
	}
	mean /= float64(len(txns))

	if len(txns) < 2 {
		return mean, 0
	}

	var variance float64
	for _, t := range txns {
		d := math.Abs(t.Amount) - mean
		variance += d * d
	}
	variance /= float64(len(txns))
	return mean, math.Sqrt(variance)
}
