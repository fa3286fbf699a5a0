package emodel

import (
	"math"

	"github.com/bioc/switchde/optimize"
	"github.com/bioc/switchde/sigmoid"
)

const (
	// varFloor is the minimal noise variance; it prevents log(0)
	// when the residuals collapse (e.g. noise-free synthetic data).
	varFloor = 1e-12
	// mu0Min is the lower boundary for the expression scale.
	mu0Min = 1e-10
)

// SigmoidModel is the Gaussian sigmoid expression model for a single
// gene. Expression x_i is Normal(mean(t_i; mu0, k, t0), sigma^2); the
// noise scale sigma is profiled out analytically, so the model has
// three free parameters.
type SigmoidModel struct {
	x, t []float64

	mu0, k, t0 float64

	mean  []float64
	dirty bool

	parameters optimize.FloatParameters
}

// NewSigmoidModel creates a sigmoid model for one gene. Starting
// values and boundaries are derived from the data: mu0 from the top
// expression values, k from the expression-pseudotime correlation
// sign, t0 from the pseudotime median.
func NewSigmoidModel(x, t []float64) *SigmoidModel {
	m := &SigmoidModel{
		x:     x,
		t:     t,
		mu0:   startMu0(x),
		k:     startK(x, t),
		t0:    startT0(t),
		mean:  make([]float64, len(x)),
		dirty: true,
	}
	m.setupParameters()
	return m
}

func (m *SigmoidModel) setupParameters() {
	m.parameters = nil
	onChange := func() { m.dirty = true }

	_, xmax := minMax(m.x)
	tmin, tmax := minMax(m.t)
	trange := tmax - tmin

	mu0 := optimize.NewBasicFloatParameter(&m.mu0, "mu0")
	mu0.SetMin(mu0Min)
	mu0.SetMax(2*xmax + 1)
	mu0.SetOnChange(onChange)

	k := optimize.NewBasicFloatParameter(&m.k, "k")
	k.SetMin(-kScale / trange)
	k.SetMax(kScale / trange)
	k.SetOnChange(onChange)

	t0 := optimize.NewBasicFloatParameter(&m.t0, "t0")
	t0.SetMin(tmin - trange)
	t0.SetMax(tmax + trange)
	t0.SetOnChange(onChange)

	m.parameters.Append(mu0)
	m.parameters.Append(k)
	m.parameters.Append(t0)
}

// GetFloatParameters returns the three free parameters.
func (m *SigmoidModel) GetFloatParameters() optimize.FloatParameters {
	return m.parameters
}

// SetParameters sets the parameter values.
func (m *SigmoidModel) SetParameters(mu0, k, t0 float64) {
	m.mu0 = mu0
	m.k = k
	m.t0 = t0
	m.dirty = true
}

// Parameters returns the current parameter values.
func (m *SigmoidModel) Parameters() (mu0, k, t0 float64) {
	return m.mu0, m.k, m.t0
}

// Copy returns an independent model sharing the read-only data.
func (m *SigmoidModel) Copy() optimize.Optimizable {
	newM := &SigmoidModel{
		x:     m.x,
		t:     m.t,
		mu0:   m.mu0,
		k:     m.k,
		t0:    m.t0,
		mean:  make([]float64, len(m.x)),
		dirty: true,
	}
	newM.setupParameters()
	return newM
}

// updateMean recomputes the cached mean curve.
func (m *SigmoidModel) updateMean() {
	sigmoid.Curve(m.t, m.mu0, m.k, m.t0, m.mean)
	m.dirty = false
}

// Likelihood computes the Gaussian profile log-likelihood with
// sigma^2 = RSS/n. Non-finite values are mapped to -Inf so the
// optimizer treats them as infeasible.
func (m *SigmoidModel) Likelihood() float64 {
	if m.dirty {
		m.updateMean()
	}
	lnL := gaussianProfileLogLik(m.x, m.mean)
	if math.IsNaN(lnL) {
		lnL = math.Inf(-1)
	}
	return lnL
}

// gaussianProfileLogLik returns the Gaussian log-likelihood of x
// around mean with the noise variance at its conditional maximum
// RSS/n.
func gaussianProfileLogLik(x, mean []float64) float64 {
	n := float64(len(x))
	rss := 0.0
	for i, v := range x {
		d := v - mean[i]
		rss += d * d
	}
	s2 := rss / n
	if s2 < varFloor {
		s2 = varFloor
	}
	return -n / 2 * (math.Log(2*math.Pi*s2) + 1)
}

// NullLogLikelihood returns the maximum log-likelihood of the
// constant-mean Gaussian model (the k=0 null with a single free mean
// parameter) together with the fitted mean. Both are closed form: the
// mean is the sample mean and the variance its MLE.
func NullLogLikelihood(x []float64) (mu, lnL float64) {
	n := float64(len(x))
	for _, v := range x {
		mu += v
	}
	mu /= n
	s2 := 0.0
	for _, v := range x {
		d := v - mu
		s2 += d * d
	}
	s2 /= n
	if s2 < varFloor {
		s2 = varFloor
	}
	lnL = -n / 2 * (math.Log(2*math.Pi*s2) + 1)
	return
}
