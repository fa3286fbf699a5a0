package optimize

import (
	"fmt"
	"math"

	lbfgsb "github.com/idavydov/go-lbfgsb"
)

// lbfgsbBoundEps shrinks the boundaries slightly so the likelihood is
// never evaluated exactly on a bound.
const lbfgsbBoundEps = 1e-9

// LBFGSB is a limited-memory Broyden-Fletcher-Goldfarb-Shanno
// optimizer with bound constraints. The gradient is estimated with
// central differences on model copies.
type LBFGSB struct {
	BaseOptimizer
	dH   float64
	grad []float64
}

// NewLBFGSB creates a new LBFGSB optimizer.
func NewLBFGSB() (l *LBFGSB) {
	l = &LBFGSB{
		BaseOptimizer: BaseOptimizer{
			repPeriod: 10,
		},
		dH: 1e-6,
	}
	return
}

// Logger is called by the lbfgsb library on every iteration.
func (l *LBFGSB) Logger(info *lbfgsb.OptimizationIterationInformation) {
	l.i = info.Iteration
	if l.repPeriod > 0 && info.Iteration%l.repPeriod == 0 {
		l.parameters.SetValues(info.X)
		l.PrintLine(l.parameters, -info.F)
	}
}

// EvaluateFunction returns the negative log-likelihood at point x.
func (l *LBFGSB) EvaluateFunction(x []float64) float64 {
	if !l.parameters.ValuesInRange(x) {
		return math.Inf(+1)
	}

	l.parameters.SetValues(x)

	L := l.Likelihood()
	l.calls++
	l.saveMax(l.parameters, L)
	return -L
}

// EvaluateGradient estimates the gradient of the negative
// log-likelihood with central differences.
func (l *LBFGSB) EvaluateGradient(x []float64) (grad []float64) {
	if l.grad == nil {
		l.grad = make([]float64, len(x))
	}
	grad = l.grad
	no := l.Optimizable.Copy()
	par := no.GetFloatParameters()
	for i := range x {
		v1 := x[i] - l.dH
		v2 := x[i] + l.dH
		if v1 < par[i].GetMin() {
			v1 = x[i]
		}
		if v2 > par[i].GetMax() {
			v2 = x[i]
		}
		if v1 == v2 {
			grad[i] = 0
			continue
		}

		par.SetValues(x)
		par[i].Set(v1)
		l1 := -no.Likelihood()

		par[i].Set(v2)
		l2 := -no.Likelihood()
		l.calls += 2

		grad[i] = (l2 - l1) / (v2 - v1)
	}
	par.SetValues(x)
	return
}

// Run runs the optimization.
func (l *LBFGSB) Run(iterations int) error {
	l.maxL = math.Inf(-1)
	l.PrintHeader(l.parameters)
	bounds := make([][2]float64, len(l.parameters))

	for i, par := range l.parameters {
		bounds[i][0] = par.GetMin() + lbfgsbBoundEps
		bounds[i][1] = par.GetMax() - lbfgsbBoundEps
	}

	opt := new(lbfgsb.Lbfgsb)
	opt.SetApproximationSize(10)
	opt.SetFTolerance(1e-9)
	opt.SetGTolerance(1e-9)

	opt.SetBounds(bounds)
	opt.SetLogger(l.Logger)

	_, exitStatus := opt.Minimize(l, l.parameters.Values(nil))

	log.Debug("Exit status: ", exitStatus)

	if math.IsInf(l.maxL, -1) || math.IsNaN(l.maxL) {
		return fmt.Errorf("non-finite likelihood during optimization (%v)", exitStatus)
	}

	l.restoreMax(l.parameters)

	if !l.Quiet {
		log.Debug("Finished LBFGSB")
		log.Debugf("Maximum likelihood: %v", l.maxL)
		log.Debugf("Likelihood function calls: %v", l.calls)
		log.Debugf("Parameter  names: %v", l.parameters.NamesString())
		log.Debugf("Parameter values: %v", l.parameters.ValuesString())
	}
	l.PrintLine(l.parameters, l.maxL)
	return nil
}

// Summary returns optimization summary.
func (l *LBFGSB) Summary() *Summary {
	return &Summary{
		Method:     "lbfgsb",
		MaxLnL:     l.maxL,
		Iterations: l.i,
		Calls:      l.calls,
	}
}
