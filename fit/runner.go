package fit

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/bioc/switchde/checkpoint"
	"github.com/bioc/switchde/dist"
	"github.com/bioc/switchde/emodel"
)

// lrtDF is the degrees of freedom of the likelihood-ratio test: the
// full model adds the activation strength and the activation time to
// the null, in both fitting modes.
const lrtDF = 2

// CriticalValue returns the likelihood-ratio statistic a gene must
// exceed to be significant at level alpha before multiple-testing
// correction.
func CriticalValue(alpha float64) float64 {
	return dist.QuantileChi2(1-alpha, lrtDF)
}

// Settings control a fitting call.
type Settings struct {
	// ZeroInflated selects the dropout mixture mode with EM
	// fitting.
	ZeroInflated bool `json:"zeroInflated"`
	// Threshold zeroes out expression values strictly below it
	// before fitting.
	Threshold float64 `json:"threshold"`
	// Method is the optimizer name (lbfgsb, simplex or none).
	Method string `json:"method"`
	// Iterations is the iteration limit of a single numerical
	// optimization.
	Iterations int `json:"iterations"`
	// MaxIter is the EM iteration limit (zero-inflated mode only).
	MaxIter int `json:"maxIter"`
	// Tol is the EM convergence tolerance on the observed
	// log-likelihood change.
	Tol float64 `json:"tol"`
	// Threads is the worker count; 0 means one per CPU.
	Threads int `json:"threads"`
}

// DefaultSettings returns the default fitting settings.
func DefaultSettings() *Settings {
	return &Settings{
		Threshold:  0.01,
		Method:     "lbfgsb",
		Iterations: 10000,
		MaxIter:    1000,
		Tol:        1e-2,
	}
}

func (s *Settings) validate() error {
	if _, err := newOptimizer(s.Method); err != nil {
		return err
	}
	if s.Iterations <= 0 {
		return fmt.Errorf("iteration limit must be positive, got %d", s.Iterations)
	}
	if s.ZeroInflated {
		if s.MaxIter <= 0 {
			return fmt.Errorf("EM iteration limit must be positive, got %d", s.MaxIter)
		}
		if s.Tol <= 0 {
			return fmt.Errorf("EM tolerance must be positive, got %v", s.Tol)
		}
	}
	if s.Threshold < 0 {
		return fmt.Errorf("threshold must be non-negative, got %v", s.Threshold)
	}
	return nil
}

func (s *Settings) newStrategy() strategy {
	if s.ZeroInflated {
		return &emStrategy{
			method:     s.Method,
			iterations: s.Iterations,
			maxIter:    s.MaxIter,
			tol:        s.Tol,
		}
	}
	return &mleStrategy{
		method:     s.Method,
		iterations: s.Iterations,
	}
}

// Runner fits all genes of a data set with a fixed strategy, fanning
// the genes out over a worker pool. An optional checkpoint store lets
// a rerun skip genes fitted previously.
type Runner struct {
	Data       *emodel.Data
	Settings   *Settings
	Checkpoint *checkpoint.Store
}

// NewRunner creates a runner for the data set.
func NewRunner(data *emodel.Data, settings *Settings) *Runner {
	return &Runner{Data: data, Settings: settings}
}

// Fit fits every gene and returns the result table. It is the
// single-call entry point; use a Runner directly for checkpointing.
func Fit(data *emodel.Data, settings *Settings) (*ResultTable, error) {
	return NewRunner(data, settings).Run()
}

// naRecord creates a record for a gene which cannot be fitted.
func naRecord(gene string) *FitRecord {
	return &FitRecord{
		Gene:    gene,
		Pval:    math.NaN(),
		Qval:    math.NaN(),
		Mu0:     math.NaN(),
		K:       math.NaN(),
		T0:      math.NaN(),
		Lambda:  math.NaN(),
		D:       math.NaN(),
		LnLFull: math.NaN(),
		LnLNull: math.NaN(),
	}
}

// fitOne fits a single gene and converts the fit into a record.
func (r *Runner) fitOne(st strategy, i int) (*FitRecord, error) {
	gene := r.Data.Genes[i]
	x := r.Data.Gene(i)
	emodel.Threshold(x, r.Settings.Threshold)

	if emodel.AllZero(x) {
		return nil, fmt.Errorf("all-zero expression")
	}

	gf, err := st.fitGene(x, r.Data.Pseudotime)
	if err != nil {
		return nil, err
	}

	d := 2 * (gf.lnLFull - gf.lnLNull)
	// the full model nests the null, so the statistic is
	// non-negative up to optimizer tolerance
	if d < 0 {
		d = 0
	}

	return &FitRecord{
		Gene:         gene,
		Pval:         dist.SurvivalChi2(d, lrtDF),
		Qval:         math.NaN(),
		Mu0:          gf.mu0,
		K:            gf.k,
		T0:           gf.t0,
		Lambda:       gf.lambda,
		EMConverged:  gf.emConverged,
		EMIterations: gf.emIterations,
		D:            d,
		LnLFull:      gf.lnLFull,
		LnLNull:      gf.lnLNull,
	}, nil
}

// Run fits all genes and returns the result table in the input gene
// order, with Benjamini-Hochberg q-values computed over the finite
// p-values of the call.
func (r *Runner) Run() (*ResultTable, error) {
	if err := r.Settings.validate(); err != nil {
		return nil, err
	}

	ngenes := r.Data.NGenes()
	records := make([]*FitRecord, ngenes)

	tasks := make(chan int, ngenes)
	resumed := 0
	for i := 0; i < ngenes; i++ {
		if r.Checkpoint != nil {
			rec := &FitRecord{}
			found, err := r.Checkpoint.Load(r.Data.Genes[i], rec)
			if err != nil {
				return nil, err
			}
			if found {
				records[i] = rec
				resumed++
				continue
			}
		}
		tasks <- i
	}
	close(tasks)
	if resumed > 0 {
		log.Noticef("Resuming: %d of %d genes already fitted", resumed, ngenes)
	}

	nWorkers := r.Settings.Threads
	if nWorkers <= 0 {
		nWorkers = runtime.GOMAXPROCS(0)
	}
	log.Infof("Fitting %d genes using %d workers", ngenes-resumed, nWorkers)

	st := r.Settings.newStrategy()

	var wg sync.WaitGroup
	var mu sync.Mutex
	skipped := 0
	var cpErr error

	for w := 0; w < nWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				rec, err := r.fitOne(st, i)
				if err != nil {
					log.Debugf("Gene %s not fitted: %v", r.Data.Genes[i], err)
					rec = naRecord(r.Data.Genes[i])
					mu.Lock()
					skipped++
					mu.Unlock()
				}
				records[i] = rec
				if r.Checkpoint != nil {
					if err := r.Checkpoint.Save(r.Data.Genes[i], rec); err != nil {
						mu.Lock()
						cpErr = err
						mu.Unlock()
					}
				}
			}
		}()
	}
	wg.Wait()

	if cpErr != nil {
		return nil, cpErr
	}
	if skipped > 0 {
		log.Warningf("%d of %d genes could not be fitted and were reported as NA", skipped, ngenes)
	}
	if r.Settings.ZeroInflated {
		nonConverged := 0
		for _, rec := range records {
			if !rec.NA() && !rec.EMConverged {
				nonConverged++
			}
		}
		if nonConverged > 0 {
			log.Warningf("EM did not converge for %d of %d genes within %d iterations; "+
				"consider increasing the iteration limit or relaxing the tolerance",
				nonConverged, ngenes, r.Settings.MaxIter)
		}
	}

	benjaminiHochberg(records)

	return &ResultTable{
		Records:      records,
		ZeroInflated: r.Settings.ZeroInflated,
	}, nil
}
