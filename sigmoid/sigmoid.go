// Package sigmoid implements the sigmoidal mean function used by the
// switch-like differential expression models.
package sigmoid

import "math"

// Mean returns the predicted mean expression at pseudotime t for the
// parameter tuple (mu0, k, t0):
//
//	mean(t) = mu0 / (1 + exp(-k*(t-t0)))
//
// mu0 is the expression scale, k the activation strength (sign gives
// the direction of regulation), t0 the activation time. The function
// is pure; degenerate parameter values (e.g. a very large k) may
// produce 0, mu0 or non-finite values, callers relying on finiteness
// should constrain the parameters instead.
func Mean(t, mu0, k, t0 float64) float64 {
	return mu0 / (1 + math.Exp(-k*(t-t0)))
}

// Curve evaluates Mean over a pseudotime vector. If dst is nil a new
// slice is allocated, otherwise dst is reused; it must have the same
// length as t.
func Curve(t []float64, mu0, k, t0 float64, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(t))
	}
	for i, ti := range t {
		dst[i] = Mean(ti, mu0, k, t0)
	}
	return dst
}
