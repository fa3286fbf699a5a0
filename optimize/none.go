package optimize

import (
	"fmt"
	"math"
)

// None is an optimizer which computes the likelihood at the current
// point and exits.
type None struct {
	BaseOptimizer
}

// NewNone creates an optimizer which computes the initial likelihood
// only.
func NewNone() *None {
	return &None{}
}

// Run computes the likelihood once.
func (n *None) Run(iterations int) error {
	n.maxL = n.Likelihood()
	n.calls++
	n.maxLPar = n.parameters.Values(n.maxLPar)
	n.PrintHeader(n.parameters)
	n.PrintLine(n.parameters, n.maxL)
	if math.IsInf(n.maxL, -1) || math.IsNaN(n.maxL) {
		return fmt.Errorf("non-finite likelihood")
	}
	return nil
}

// Summary returns optimization summary.
func (n *None) Summary() *Summary {
	return &Summary{
		Method:     "none",
		MaxLnL:     n.maxL,
		Iterations: 0,
		Calls:      n.calls,
	}
}
