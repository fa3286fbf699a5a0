// Package optimize provides bounded maximum-likelihood optimization
// for models exposing named float parameters.
package optimize

import (
	"math"

	"github.com/op/go-logging"
)

// log is the global logging variable.
var log = logging.MustGetLogger("optimize")

// Optimizable is something which can be optimized by an Optimizer: it
// exposes its free parameters and computes a log-likelihood for the
// current parameter values. Copy is used for numerical gradient
// evaluation and must return an independent instance sharing only
// read-only data.
type Optimizable interface {
	GetFloatParameters() FloatParameters
	Likelihood() float64
	Copy() Optimizable
}

// Optimizer is a maximum-likelihood optimizer.
type Optimizer interface {
	// SetOptimizable sets the model to optimize.
	SetOptimizable(Optimizable)
	// SetReportPeriod sets the number of iterations between
	// trajectory reports.
	SetReportPeriod(period int)
	// Run performs at most iterations iterations of optimization.
	// On success the model parameters are left at the best point
	// found. A non-nil error indicates a numerical failure; the
	// model parameters are unspecified in that case.
	Run(iterations int) error
	// GetMaxLikelihood returns the maximum log-likelihood found.
	GetMaxLikelihood() float64
	// GetMaxLikelihoodParameters returns the parameter values at
	// the maximum as a name->value map.
	GetMaxLikelihoodParameters() map[string]float64
	// Summary returns optimization summary for reporting.
	Summary() *Summary
}

// Summary stores the result of a single optimizer run.
type Summary struct {
	// Method is the optimization method name.
	Method string `json:"method"`
	// MaxLnL is the maximum log-likelihood found.
	MaxLnL float64 `json:"maxLnL"`
	// Iterations is the number of iterations performed.
	Iterations int `json:"iterations"`
	// Calls is the number of likelihood function calls.
	Calls int `json:"likelihoodCalls"`
}

// BaseOptimizer implements the bookkeeping shared by all optimizers.
type BaseOptimizer struct {
	Optimizable
	// Quiet disables trajectory reporting.
	Quiet bool

	parameters FloatParameters
	i          int
	calls      int
	maxL       float64
	maxLPar    []float64
	repPeriod  int
}

// SetOptimizable sets the model to optimize.
func (o *BaseOptimizer) SetOptimizable(opt Optimizable) {
	o.Optimizable = opt
	o.parameters = opt.GetFloatParameters()
}

// SetReportPeriod sets the number of iterations between reports.
func (o *BaseOptimizer) SetReportPeriod(period int) {
	o.repPeriod = period
}

// PrintHeader logs the parameter names.
func (o *BaseOptimizer) PrintHeader(parameters FloatParameters) {
	if !o.Quiet {
		log.Debugf("iteration\tlikelihood\t%s", parameters.NamesString())
	}
}

// PrintLine logs one trajectory line.
func (o *BaseOptimizer) PrintLine(parameters FloatParameters, l float64) {
	if !o.Quiet {
		log.Debugf("%d\t%f\t%s", o.i, l, parameters.ValuesString())
	}
}

// saveMax remembers the parameter values if the likelihood improved.
func (o *BaseOptimizer) saveMax(parameters FloatParameters, l float64) {
	if l > o.maxL {
		o.maxL = l
		o.maxLPar = parameters.Values(o.maxLPar)
	}
}

// restoreMax sets the model parameters to the best point found.
func (o *BaseOptimizer) restoreMax(parameters FloatParameters) {
	if o.maxLPar != nil {
		parameters.SetValues(o.maxLPar)
	}
}

// GetMaxLikelihood returns the maximum log-likelihood found.
func (o *BaseOptimizer) GetMaxLikelihood() float64 {
	return o.maxL
}

// GetMaxLikelihoodParameters returns parameter values at the maximum.
func (o *BaseOptimizer) GetMaxLikelihoodParameters() map[string]float64 {
	res := make(map[string]float64, len(o.parameters))
	for i, par := range o.parameters {
		if o.maxLPar != nil {
			res[par.Name()] = o.maxLPar[i]
		} else {
			res[par.Name()] = math.NaN()
		}
	}
	return res
}
