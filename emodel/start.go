package emodel

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// kScale controls the activation-strength boundaries: k is constrained
// to +-kScale per unit of pseudotime range.
const kScale = 100

// startMu0 returns the starting value for the expression scale: the
// mean of the top decile of expression values (at least one value).
func startMu0(x []float64) float64 {
	sorted := append([]float64(nil), x...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	ntop := len(sorted) / 10
	if ntop < 1 {
		ntop = 1
	}
	mu0, err := stats.Mean(sorted[:ntop])
	if err != nil || mu0 <= 0 {
		return 1
	}
	return mu0
}

// startK returns the starting activation strength: a small slope with
// the sign of the correlation between expression and pseudotime.
func startK(x, t []float64) float64 {
	tmin, tmax := minMax(t)
	step := 2 / (tmax - tmin)
	corr := stat.Correlation(x, t, nil)
	switch {
	case math.IsNaN(corr) || corr == 0:
		return 0
	case corr > 0:
		return step
	}
	return -step
}

// startT0 returns the starting activation time: the pseudotime median.
func startT0(t []float64) float64 {
	t0, err := stats.Median(t)
	if err != nil {
		return (t[0] + t[len(t)-1]) / 2
	}
	return t0
}

// startLambda returns the starting dropout coefficient, chosen so that
// the dropout probability at the mean nonzero expression level matches
// the observed fraction of zeros.
func startLambda(x []float64) float64 {
	var nonzero []float64
	nzeros := 0
	for _, v := range x {
		if v == 0 {
			nzeros++
		} else {
			nonzero = append(nonzero, v)
		}
	}
	if nzeros == 0 {
		// no zeros observed, start close to the no-dropout corner
		return 1e-2
	}
	if len(nonzero) == 0 {
		return 1
	}
	zfrac := float64(nzeros) / float64(len(x))
	mu, err := stats.Mean(nonzero)
	if err != nil || mu <= 0 {
		return 1
	}
	// solve exp(-mu^2/lambda) = zfrac for lambda
	return -mu * mu / math.Log(zfrac)
}
