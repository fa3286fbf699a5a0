// Package fit orchestrates per-gene sigmoid model fitting: maximum
// likelihood estimation, the likelihood-ratio significance test
// against a constant-mean null, optional zero-inflated EM fitting, and
// Benjamini-Hochberg correction over all genes of a call.
package fit

import (
	"fmt"
	"strings"

	"github.com/op/go-logging"

	"github.com/bioc/switchde/optimize"
)

// log is the global logging variable.
var log = logging.MustGetLogger("fit")

// geneFit is the outcome of fitting one gene under a strategy: the
// maximum-likelihood parameters of the full model and the maximized
// log-likelihoods of the full and null models.
type geneFit struct {
	mu0, k, t0 float64
	lambda     float64

	lnLFull, lnLNull float64

	emConverged  bool
	emIterations int
}

// strategy fits the full and null models for a single gene. The input
// slices are owned by the caller of fitGene and are not retained.
type strategy interface {
	fitGene(x, t []float64) (*geneFit, error)
}

// newOptimizer creates an optimizer by name.
func newOptimizer(method string) (optimize.Optimizer, error) {
	switch strings.ToLower(method) {
	case "lbfgsb":
		return optimize.NewLBFGSB(), nil
	case "simplex", "ds":
		return optimize.NewDS(), nil
	case "none", "n":
		return optimize.NewNone(), nil
	}
	return nil, fmt.Errorf("unknown optimization method %q", method)
}
