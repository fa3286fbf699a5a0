package emodel

import (
	"math"

	"github.com/bioc/switchde/optimize"
	"github.com/bioc/switchde/sigmoid"
)

const (
	// pEps keeps the dropout probability away from 0 and 1 inside
	// logarithms.
	pEps = 1e-12
	// lambdaMax is the upper boundary for the dropout coefficient.
	lambdaMax = 1e6
	// likFloor is the minimal per-cell mixture density.
	likFloor = 1e-300
)

// ZeroInflatedModel is the dropout mixture model for a single gene.
// Each cell is either a dropout (observed as an exact zero, point-mass
// component) with probability p_i = exp(-mean_i^2/lambda), or follows
// the Gaussian sigmoid model. A nonzero observation can only come from
// the expression component; a zero observation mixes the point mass
// with the Normal density at zero.
//
// The model implements optimize.Optimizable; Likelihood returns the
// expected complete-data log-likelihood for the current
// responsibilities (the M-step objective), with the noise variance
// profiled from the responsibility-weighted residuals. The
// observed-data log-likelihood used for the convergence test and the
// LRT is exposed separately.
type ZeroInflatedModel struct {
	x, t []float64
	zero []bool

	// resp is the posterior dropout responsibility per cell,
	// updated by EStep; it is exactly 0 for nonzero observations.
	resp []float64

	mu0, k, t0, lambda float64
	sigma2             float64

	// constMean makes the mean constant (the null model): only mu0
	// (named "mu") and lambda remain free.
	constMean bool

	mean  []float64
	dirty bool

	parameters optimize.FloatParameters
}

// NewZeroInflatedModel creates a zero-inflated model for one gene.
// With constMean the model is the constant-mean null variant.
func NewZeroInflatedModel(x, t []float64, constMean bool) *ZeroInflatedModel {
	m := &ZeroInflatedModel{
		x:         x,
		t:         t,
		zero:      make([]bool, len(x)),
		resp:      make([]float64, len(x)),
		lambda:    startLambda(x),
		constMean: constMean,
		mean:      make([]float64, len(x)),
		dirty:     true,
	}
	for i, v := range x {
		m.zero[i] = v == 0
	}
	if constMean {
		m.mu0, _ = NullLogLikelihood(x)
		if m.mu0 <= mu0Min {
			m.mu0 = mu0Min * 2
		}
	} else {
		m.mu0 = startMu0(x)
		m.k = startK(x, t)
		m.t0 = startT0(t)
	}
	m.setupParameters()
	m.ProfileSigma()
	return m
}

func (m *ZeroInflatedModel) setupParameters() {
	m.parameters = nil
	onChange := func() { m.dirty = true }

	_, xmax := minMax(m.x)

	if m.constMean {
		mu := optimize.NewBasicFloatParameter(&m.mu0, "mu")
		mu.SetMin(mu0Min)
		mu.SetMax(2*xmax + 1)
		mu.SetOnChange(onChange)
		m.parameters.Append(mu)
	} else {
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

	lambda := optimize.NewBasicFloatParameter(&m.lambda, "lambda")
	lambda.SetMin(0)
	lambda.SetMax(lambdaMax)
	lambda.SetOnChange(onChange)
	m.parameters.Append(lambda)
}

// GetFloatParameters returns the free parameters.
func (m *ZeroInflatedModel) GetFloatParameters() optimize.FloatParameters {
	return m.parameters
}

// Parameters returns the current parameter values.
func (m *ZeroInflatedModel) Parameters() (mu0, k, t0, lambda float64) {
	return m.mu0, m.k, m.t0, m.lambda
}

// SetParameters sets the parameter values.
func (m *ZeroInflatedModel) SetParameters(mu0, k, t0, lambda float64) {
	m.mu0 = mu0
	m.k = k
	m.t0 = t0
	m.lambda = lambda
	m.dirty = true
}

// Sigma2 returns the current profiled noise variance.
func (m *ZeroInflatedModel) Sigma2() float64 {
	return m.sigma2
}

// Copy returns an independent model sharing the read-only data and the
// current responsibilities.
func (m *ZeroInflatedModel) Copy() optimize.Optimizable {
	newM := &ZeroInflatedModel{
		x:         m.x,
		t:         m.t,
		zero:      m.zero,
		resp:      append([]float64(nil), m.resp...),
		mu0:       m.mu0,
		k:         m.k,
		t0:        m.t0,
		lambda:    m.lambda,
		sigma2:    m.sigma2,
		constMean: m.constMean,
		mean:      make([]float64, len(m.x)),
		dirty:     true,
	}
	newM.setupParameters()
	return newM
}

// updateMean recomputes the cached mean curve.
func (m *ZeroInflatedModel) updateMean() {
	if m.constMean {
		for i := range m.mean {
			m.mean[i] = m.mu0
		}
	} else {
		sigmoid.Curve(m.t, m.mu0, m.k, m.t0, m.mean)
	}
	m.dirty = false
}

// dropoutProb returns the dropout probability for a latent mean mu.
// It is monotonically decreasing in mu, increasing in lambda, bounded
// to [0,1]; lambda=0 means no dropout.
func dropoutProb(mu, lambda float64) float64 {
	if lambda <= 0 {
		return 0
	}
	return math.Exp(-mu * mu / lambda)
}

// clampProb keeps a probability inside (pEps, 1-pEps).
func clampProb(p float64) float64 {
	if p < pEps {
		return pEps
	}
	if p > 1-pEps {
		return 1 - pEps
	}
	return p
}

// normLogDensity is the Normal log-density with variance s2.
func normLogDensity(x, mu, s2 float64) float64 {
	d := x - mu
	return -0.5*math.Log(2*math.Pi*s2) - d*d/(2*s2)
}

// EStep updates the dropout responsibilities given the current
// parameters and noise variance. Nonzero observations cannot come from
// the point-mass component, their responsibility is 0.
func (m *ZeroInflatedModel) EStep() {
	if m.dirty {
		m.updateMean()
	}
	for i := range m.x {
		if !m.zero[i] {
			m.resp[i] = 0
			continue
		}
		p := clampProb(dropoutProb(m.mean[i], m.lambda))
		phi0 := math.Exp(normLogDensity(0, m.mean[i], m.sigma2))
		m.resp[i] = p / (p + (1-p)*phi0)
	}
}

// ProfileSigma re-estimates the noise variance from the
// responsibility-weighted residuals of the expression component.
func (m *ZeroInflatedModel) ProfileSigma() {
	if m.dirty {
		m.updateMean()
	}
	m.sigma2 = m.weightedVariance()
}

func (m *ZeroInflatedModel) weightedVariance() float64 {
	wrss := 0.0
	wsum := 0.0
	for i, v := range m.x {
		w := 1 - m.resp[i]
		d := v - m.mean[i]
		wrss += w * d * d
		wsum += w
	}
	s2 := varFloor
	if wsum > 0 {
		s2 = wrss / wsum
	}
	if s2 < varFloor {
		s2 = varFloor
	}
	return s2
}

// Likelihood returns the expected complete-data log-likelihood (the
// M-step objective) at the current parameters, with the noise variance
// at its conditional maximum given the responsibilities.
func (m *ZeroInflatedModel) Likelihood() float64 {
	if m.dirty {
		m.updateMean()
	}
	s2 := m.weightedVariance()
	q := 0.0
	for i, v := range m.x {
		p := clampProb(dropoutProb(m.mean[i], m.lambda))
		r := m.resp[i]
		if r > 0 {
			q += r * math.Log(p)
		}
		if r < 1 {
			q += (1 - r) * (math.Log(1-p) + normLogDensity(v, m.mean[i], s2))
		}
	}
	if math.IsNaN(q) {
		q = math.Inf(-1)
	}
	return q
}

// ObservedLogLikelihood returns the observed-data log-likelihood of
// the mixture at the current parameters and noise variance. This is
// the quantity monitored for EM convergence and used in the
// likelihood-ratio test.
func (m *ZeroInflatedModel) ObservedLogLikelihood() float64 {
	if m.dirty {
		m.updateMean()
	}
	lnL := 0.0
	for i, v := range m.x {
		p := clampProb(dropoutProb(m.mean[i], m.lambda))
		if m.zero[i] {
			dens := p + (1-p)*math.Exp(normLogDensity(0, m.mean[i], m.sigma2))
			if dens < likFloor {
				dens = likFloor
			}
			lnL += math.Log(dens)
		} else {
			lnL += math.Log(1-p) + normLogDensity(v, m.mean[i], m.sigma2)
		}
	}
	if math.IsNaN(lnL) {
		lnL = math.Inf(-1)
	}
	return lnL
}
