package fit

import (
	"math"

	"github.com/bioc/switchde/emodel"
)

// mleStrategy is the plain Gaussian fitting mode: the sigmoid model is
// maximized numerically, the constant-mean null is closed form.
type mleStrategy struct {
	method     string
	iterations int
}

func (s *mleStrategy) fitGene(x, t []float64) (*geneFit, error) {
	m := emodel.NewSigmoidModel(x, t)

	opt, err := newOptimizer(s.method)
	if err != nil {
		return nil, err
	}
	opt.SetOptimizable(m)
	if err := opt.Run(s.iterations); err != nil {
		return nil, err
	}

	mu0, k, t0 := m.Parameters()
	_, lnLNull := emodel.NullLogLikelihood(x)

	return &geneFit{
		mu0:     mu0,
		k:       k,
		t0:      t0,
		lambda:  math.NaN(),
		lnLFull: opt.GetMaxLikelihood(),
		lnLNull: lnLNull,
	}, nil
}
