package fit

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/jinzhu/copier"
)

// FitRecord holds the fit of a single gene: the likelihood-ratio test
// p-value and q-value and the maximum-likelihood sigmoid parameters.
// Lambda, EMConverged and EMIterations are only meaningful for
// zero-inflated fits.
// Genes which could not be fitted (e.g. all-zero expression) carry NaN
// in the numeric columns.
type FitRecord struct {
	Gene         string
	Pval         float64
	Qval         float64
	Mu0          float64
	K            float64
	T0           float64
	Lambda       float64
	EMConverged  bool
	EMIterations int

	// D is the likelihood-ratio statistic 2*(lnL_full - lnL_null).
	D float64
	// LnLFull and LnLNull are the maximized log-likelihoods of the
	// two models.
	LnLFull float64
	LnLNull float64
}

// NA returns true if the gene could not be fitted.
func (r *FitRecord) NA() bool {
	return math.IsNaN(r.Pval)
}

// jsonFitRecord mirrors FitRecord with pointer floats so that NA
// values survive a JSON round trip as null (encoding/json rejects
// NaN).
type jsonFitRecord struct {
	Gene         string   `json:"gene"`
	Pval         *float64 `json:"pval"`
	Qval         *float64 `json:"qval"`
	Mu0          *float64 `json:"mu0"`
	K            *float64 `json:"k"`
	T0           *float64 `json:"t0"`
	Lambda       *float64 `json:"lambda"`
	EMConverged  bool     `json:"EM_converged"`
	EMIterations int      `json:"EM_iterations"`
	D            *float64 `json:"D"`
	LnLFull      *float64 `json:"lnL_full"`
	LnLNull      *float64 `json:"lnL_null"`
}

func toNullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func fromNullable(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// MarshalJSON renders NaN fields as null.
func (r *FitRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(&jsonFitRecord{
		Gene:         r.Gene,
		Pval:         toNullable(r.Pval),
		Qval:         toNullable(r.Qval),
		Mu0:          toNullable(r.Mu0),
		K:            toNullable(r.K),
		T0:           toNullable(r.T0),
		Lambda:       toNullable(r.Lambda),
		EMConverged:  r.EMConverged,
		EMIterations: r.EMIterations,
		D:            toNullable(r.D),
		LnLFull:      toNullable(r.LnLFull),
		LnLNull:      toNullable(r.LnLNull),
	})
}

// UnmarshalJSON restores null fields as NaN.
func (r *FitRecord) UnmarshalJSON(data []byte) error {
	var jr jsonFitRecord
	if err := json.Unmarshal(data, &jr); err != nil {
		return err
	}
	r.Gene = jr.Gene
	r.Pval = fromNullable(jr.Pval)
	r.Qval = fromNullable(jr.Qval)
	r.Mu0 = fromNullable(jr.Mu0)
	r.K = fromNullable(jr.K)
	r.T0 = fromNullable(jr.T0)
	r.Lambda = fromNullable(jr.Lambda)
	r.EMConverged = jr.EMConverged
	r.EMIterations = jr.EMIterations
	r.D = fromNullable(jr.D)
	r.LnLFull = fromNullable(jr.LnLFull)
	r.LnLNull = fromNullable(jr.LnLNull)
	return nil
}

// ResultTable is the per-gene fit table for one call. The rows are in
// the input gene order. ZeroInflated marks tables produced by the
// zero-inflated fitting mode; they carry the two extra columns.
type ResultTable struct {
	Records      []*FitRecord `json:"records"`
	ZeroInflated bool         `json:"zero_inflated"`
}

// Get returns a copy of the record for the given gene identifier, or
// nil if the gene is not in the table.
func (t *ResultTable) Get(gene string) *FitRecord {
	for _, r := range t.Records {
		if r.Gene == gene {
			res := &FitRecord{}
			if err := copier.Copy(res, r); err != nil {
				panic(err)
			}
			return res
		}
	}
	return nil
}

// copyWith returns a new table with the given records, preserving the
// table mode. Records are deep-copied so the source table stays
// unchanged.
func (t *ResultTable) copyWith(records []*FitRecord) *ResultTable {
	res := &ResultTable{
		Records:      make([]*FitRecord, len(records)),
		ZeroInflated: t.ZeroInflated,
	}
	for i, r := range records {
		nr := &FitRecord{}
		if err := copier.Copy(nr, r); err != nil {
			panic(err)
		}
		res.Records[i] = nr
	}
	return res
}

// SortByQval returns a new table sorted by increasing q-value. Rows
// without a q-value (unfittable genes) go last.
func (t *ResultTable) SortByQval() *ResultTable {
	res := t.copyWith(t.Records)
	sort.SliceStable(res.Records, func(i, j int) bool {
		qi, qj := res.Records[i].Qval, res.Records[j].Qval
		if math.IsNaN(qj) {
			return !math.IsNaN(qi)
		}
		if math.IsNaN(qi) {
			return false
		}
		return qi < qj
	})
	return res
}

// Significant returns a new table with the genes whose q-value is
// below alpha.
func (t *ResultTable) Significant(alpha float64) *ResultTable {
	var records []*FitRecord
	for _, r := range t.Records {
		if !math.IsNaN(r.Qval) && r.Qval < alpha {
			records = append(records, r)
		}
	}
	return t.copyWith(records)
}

// formatValue renders a float for the text table, NaN as NA.
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', 8, 64)
}

// WriteTSV writes the table in tab-separated form with a header line.
func (t *ResultTable) WriteTSV(w io.Writer) error {
	header := "gene\tpval\tqval\tmu0\tk\tt0"
	if t.ZeroInflated {
		header += "\tlambda\tEM_converged\tEM_iterations"
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	for _, r := range t.Records {
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s",
			r.Gene,
			formatValue(r.Pval), formatValue(r.Qval),
			formatValue(r.Mu0), formatValue(r.K), formatValue(r.T0))
		if t.ZeroInflated {
			conv, iter := "NA", "NA"
			if !r.NA() {
				conv = strconv.FormatBool(r.EMConverged)
				iter = strconv.Itoa(r.EMIterations)
			}
			line += fmt.Sprintf("\t%s\t%s\t%s", formatValue(r.Lambda), conv, iter)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// benjaminiHochberg fills the Qval fields from the Pval fields using
// the Benjamini-Hochberg step-up procedure. Rows with NaN p-values are
// excluded from the ranking and from the test count; their q-value
// stays NaN.
func benjaminiHochberg(records []*FitRecord) {
	var tested []*FitRecord
	for _, r := range records {
		if math.IsNaN(r.Pval) {
			r.Qval = math.NaN()
		} else {
			tested = append(tested, r)
		}
	}
	n := len(tested)
	if n == 0 {
		return
	}
	sort.SliceStable(tested, func(i, j int) bool {
		return tested[i].Pval < tested[j].Pval
	})
	prev := 1.0
	for i := n - 1; i >= 0; i-- {
		q := tested[i].Pval * float64(n) / float64(i+1)
		if q > prev {
			q = prev
		}
		tested[i].Qval = q
		prev = q
	}
}
