package optimize

import (
	"fmt"
	"math"
)

const (
	dsTiny  = 1e-10
	dsSmall = 1e-6
)

// DS is a downhill simplex (Nelder-Mead) optimizer. It is
// derivative-free and serves as a pure-Go alternative to LBFGSB.
type DS struct {
	BaseOptimizer
	delta     float64
	ftol      float64
	repeat    bool
	oldL      float64
	points    []Optimizable
	psum      []float64
	pointPars []FloatParameters
	l         []float64
	newOpt    Optimizable
	newPar    FloatParameters
}

// NewDS creates a new downhill simplex optimizer.
func NewDS() (ds *DS) {
	ds = &DS{
		delta: 1,
		ftol:  dsTiny,
	}
	ds.repPeriod = 10
	return
}

// SetOptimizable sets the model to optimize.
func (ds *DS) SetOptimizable(opt Optimizable) {
	ds.BaseOptimizer.SetOptimizable(opt)
	ds.createSimplex(opt, ds.delta)
}

// createSimplex creates the initial simplex around the model's
// current point; every vertex out of range gets -Inf likelihood.
func (ds *DS) createSimplex(opt Optimizable, delta float64) {
	parameters := opt.GetFloatParameters()
	ds.points = make([]Optimizable, len(parameters)+1)
	ds.pointPars = make([]FloatParameters, len(ds.points))
	ds.l = make([]float64, len(ds.points))
	ds.points[0] = opt
	ds.pointPars[0] = parameters
	for i := 1; i < len(ds.points); i++ {
		point := opt.Copy()
		ds.points[i] = point
		ds.pointPars[i] = point.GetFloatParameters()
	}
	for i := 0; i < len(parameters); i++ {
		parameter := ds.pointPars[i+1][i]
		d := delta
		if parameter.Get()+d > parameter.GetMax() {
			d = -d
		}
		parameter.Set(parameter.Get() + d)
	}
	for i := range ds.points {
		if ds.pointPars[i].InRange() {
			ds.l[i] = ds.points[i].Likelihood()
			ds.calls++
		} else {
			ds.l[i] = math.Inf(-1)
		}
	}
}

func (ds *DS) calcPsum() {
	ds.psum = make([]float64, len(ds.pointPars[0]))
	for i := range ds.psum {
		for _, parameters := range ds.pointPars {
			ds.psum[i] += parameters[i].Get()
		}
	}
}

// amotry extrapolates by factor fac through the face of the simplex
// across from the worst point and replaces the worst point if the new
// point is better.
func (ds *DS) amotry(ilo int, fac float64) float64 {
	if ds.newOpt == nil {
		ds.newOpt = ds.points[0].Copy()
		ds.newPar = ds.newOpt.GetFloatParameters()
	}
	ds.calcPsum()
	ndim := len(ds.newPar)
	fac1 := (1 - fac) / float64(ndim)
	fac2 := fac1 - fac
	for j := 0; j < ndim; j++ {
		ds.newPar[j].Set(ds.psum[j]*fac1 - ds.pointPars[ilo][j].Get()*fac2)
	}
	var l float64
	if ds.newPar.InRange() {
		l = ds.newOpt.Likelihood()
		ds.calls++
	} else {
		l = math.Inf(-1)
	}
	if l > ds.l[ilo] {
		ds.points[ilo], ds.newOpt = ds.newOpt, ds.points[ilo]
		ds.pointPars[ilo], ds.newPar = ds.newPar, ds.pointPars[ilo]
		ds.l[ilo] = l
	}
	return l
}

// Run runs the optimization.
func (ds *DS) Run(iterations int) error {
	// Lowest (worst), next-lowest and highest points.
	var ilo, inlo, ihi int
	var llo, lnlo, lhi float64
	ds.PrintHeader(ds.pointPars[0])
	ds.maxL = math.Inf(-1)
	for ds.i = 1; ds.i <= iterations; ds.i++ {
		if ds.l[0] < ds.l[1] {
			ilo, inlo, ihi = 0, 1, 1
		} else {
			ilo, inlo, ihi = 1, 0, 0
		}
		llo = ds.l[ilo]
		lnlo = ds.l[inlo]
		lhi = ds.l[ihi]
		for i := 2; i < len(ds.points); i++ {
			if ds.l[i] >= lhi {
				lhi = ds.l[i]
				ihi = i
			}
			if ds.l[i] < llo {
				lnlo = llo
				inlo = ilo
				llo = ds.l[i]
				ilo = i
			} else if ds.l[i] < lnlo {
				lnlo = ds.l[i]
				inlo = i
			}
		}
		_ = inlo
		ds.saveMax(ds.pointPars[ihi], lhi)
		if ds.repPeriod > 0 && ds.i%ds.repPeriod == 0 {
			ds.PrintLine(ds.pointPars[ihi], lhi)
		}
		rtol := 2 * math.Abs(lhi-llo) / (math.Abs(llo) + math.Abs(lhi) + dsTiny)
		if rtol < ds.ftol {
			if ds.repeat && math.Abs(ds.oldL-lhi) < dsSmall {
				break
			}
			// restart the simplex from the best point to
			// escape premature shrinkage
			ds.repeat = true
			ds.oldL = lhi
			log.Debugf("converged at %f, retrying", lhi)
			ds.createSimplex(ds.points[ihi], ds.delta)
			continue
		}
		l := ds.amotry(ilo, -1)
		switch {
		case l >= lhi:
			ds.amotry(ilo, 2)
		case l <= lnlo:
			lsave := llo
			l := ds.amotry(ilo, 0.5)
			if l <= lsave {
				// contract all points towards the best one
				for i, point := range ds.points {
					if i == ihi {
						continue
					}
					for j := range ds.pointPars[i] {
						ds.pointPars[i][j].Set(0.5 * (ds.pointPars[i][j].Get() + ds.pointPars[ihi][j].Get()))
					}
					if ds.pointPars[i].InRange() {
						ds.l[i] = point.Likelihood()
						ds.calls++
					} else {
						ds.l[i] = math.Inf(-1)
					}
				}
			}
		}
	}
	if ds.i >= iterations {
		log.Debugf("simplex iterations exceeded (%d)", iterations)
	}

	if math.IsInf(ds.maxL, -1) || math.IsNaN(ds.maxL) {
		return fmt.Errorf("non-finite likelihood during simplex optimization")
	}

	ds.restoreMax(ds.parameters)
	ds.PrintLine(ds.parameters, ds.maxL)
	return nil
}

// Summary returns optimization summary.
func (ds *DS) Summary() *Summary {
	return &Summary{
		Method:     "simplex",
		MaxLnL:     ds.maxL,
		Iterations: ds.i,
		Calls:      ds.calls,
	}
}
