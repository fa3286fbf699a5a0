// Package emodel provides single-cell expression models for
// switch-like differential expression testing: a Gaussian sigmoid
// model with analytically profiled noise scale, its closed-form null
// counterpart, and a zero-inflated mixture model for dropout.
package emodel

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gonum/matrix/mat64"
	"github.com/op/go-logging"
)

// log is the global logging variable.
var log = logging.MustGetLogger("emodel")

// MinCells is the minimal number of cells required for a fit to be
// identifiable.
const MinCells = 4

// Data stores the expression matrix (genes as rows, cells as columns),
// the gene identifiers and the pseudotime ordering of the cells. It is
// read-only during fitting and can be shared between goroutines.
type Data struct {
	X          *mat64.Dense
	Genes      []string
	Pseudotime []float64
}

// NewData creates a Data container and validates the shapes. An error
// here is fatal for the whole call: no fitting can proceed without
// consistent dimensions.
func NewData(x *mat64.Dense, genes []string, pseudotime []float64) (*Data, error) {
	ngenes, ncells := x.Dims()
	if len(genes) != ngenes {
		return nil, fmt.Errorf("expression matrix has %d rows, but %d gene names supplied", ngenes, len(genes))
	}
	if len(pseudotime) != ncells {
		return nil, fmt.Errorf("expression matrix has %d cells, but pseudotime has length %d", ncells, len(pseudotime))
	}
	if ncells < MinCells {
		return nil, fmt.Errorf("too few cells for fitting: %d (minimum %d)", ncells, MinCells)
	}
	tmin, tmax := minMax(pseudotime)
	if tmin == tmax {
		return nil, fmt.Errorf("pseudotime is constant, cannot fit an activation time")
	}
	return &Data{X: x, Genes: genes, Pseudotime: pseudotime}, nil
}

// NGenes returns the number of genes.
func (d *Data) NGenes() int {
	r, _ := d.X.Dims()
	return r
}

// NCells returns the number of cells.
func (d *Data) NCells() int {
	_, c := d.X.Dims()
	return c
}

// Gene returns a copy of the expression vector for gene i. The copy
// can be modified (e.g. thresholded) without affecting the matrix.
func (d *Data) Gene(i int) []float64 {
	return mat64.Row(nil, i, d.X)
}

// Threshold zeroes out all values of x strictly below lower. This is
// the deterministic pre-cleaning step applied identically to every
// gene before fitting.
func Threshold(x []float64, lower float64) {
	for i, v := range x {
		if v < lower {
			x[i] = 0
		}
	}
}

// AllZero returns true if every value of x is zero.
func AllZero(x []float64) bool {
	for _, v := range x {
		if v != 0 {
			return false
		}
	}
	return true
}

// ReadExpression parses a tab-separated expression table: a header
// line with cell identifiers, then one line per gene starting with the
// gene identifier followed by one value per cell.
func ReadExpression(r io.Reader) (*mat64.Dense, []string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)

	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("empty expression file")
	}
	header := strings.Fields(scanner.Text())
	ncells := len(header)
	if ncells == 0 {
		return nil, nil, fmt.Errorf("empty expression header")
	}

	var genes []string
	var values []float64
	line := 1
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != ncells+1 {
			return nil, nil, fmt.Errorf("line %d: expected %d values for gene %s, got %d",
				line, ncells, fields[0], len(fields)-1)
		}
		genes = append(genes, fields[0])
		for _, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: %v", line, err)
			}
			values = append(values, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if len(genes) == 0 {
		return nil, nil, fmt.Errorf("no genes in expression file")
	}
	log.Infof("Read expression for %d genes, %d cells", len(genes), ncells)
	return mat64.NewDense(len(genes), ncells, values), genes, nil
}

// ReadPseudotime parses whitespace-separated pseudotime values, one or
// more per line.
func ReadPseudotime(r io.Reader) ([]float64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	var result []float64
	for scanner.Scan() {
		v, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// minMax returns the minimum and maximum of a vector.
func minMax(x []float64) (min, max float64) {
	min, max = x[0], x[0]
	for _, v := range x[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return
}
