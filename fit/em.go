package fit

import (
	"math"

	"github.com/bioc/switchde/emodel"
)

// emStrategy is the zero-inflated fitting mode. Both the full sigmoid
// model and the constant-mean null carry their own dropout component
// and are maximized by expectation-maximization; the M-step reuses the
// numerical optimizer on the expected complete-data objective.
type emStrategy struct {
	method     string
	iterations int

	maxIter int
	tol     float64
}

// emFit is the outcome of one EM run.
type emFit struct {
	// lnL is the final observed-data log-likelihood.
	lnL float64
	// iterations is the number of EM iterations performed.
	iterations int
	// converged is true if the observed log-likelihood change
	// dropped below the tolerance before the iteration limit.
	converged bool
	// trajectory holds the observed log-likelihood after each
	// iteration, starting from the initial point. The sequence is
	// non-decreasing up to the optimizer tolerance.
	trajectory []float64
}

// run performs EM on a zero-inflated model until the observed-data
// log-likelihood stabilizes or maxIter is reached. The model is left
// at the last accepted parameters; a numerically failed M-step keeps
// the last estimate and terminates the loop without convergence.
func (s *emStrategy) run(m *emodel.ZeroInflatedModel) (*emFit, error) {
	res := &emFit{}
	pars := m.GetFloatParameters()
	var lastGood []float64

	l0 := m.ObservedLogLikelihood()
	res.trajectory = append(res.trajectory, l0)

	for it := 1; it <= s.maxIter; it++ {
		res.iterations = it

		m.EStep()
		lastGood = pars.Values(lastGood)

		opt, err := newOptimizer(s.method)
		if err != nil {
			return nil, err
		}
		opt.SetOptimizable(m)
		if err := opt.Run(s.iterations); err != nil {
			log.Debugf("M-step failed (%v), keeping the last parameter estimate", err)
			if err := pars.SetValues(lastGood); err != nil {
				return nil, err
			}
			break
		}

		m.ProfileSigma()
		l1 := m.ObservedLogLikelihood()
		res.trajectory = append(res.trajectory, l1)

		if math.Abs(l1-l0) < s.tol {
			l0 = l1
			res.converged = true
			break
		}
		l0 = l1
	}

	res.lnL = l0
	return res, nil
}

func (s *emStrategy) fitGene(x, t []float64) (*geneFit, error) {
	full := emodel.NewZeroInflatedModel(x, t, false)
	fullRes, err := s.run(full)
	if err != nil {
		return nil, err
	}

	null := emodel.NewZeroInflatedModel(x, t, true)
	nullRes, err := s.run(null)
	if err != nil {
		return nil, err
	}

	mu0, k, t0, lambda := full.Parameters()

	return &geneFit{
		mu0:          mu0,
		k:            k,
		t0:           t0,
		lambda:       lambda,
		lnLFull:      fullRes.lnL,
		lnLNull:      nullRes.lnL,
		emConverged:  fullRes.converged && nullRes.converged,
		emIterations: fullRes.iterations,
	}, nil
}
