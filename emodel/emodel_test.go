package emodel

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/gonum/matrix/mat64"
	"github.com/op/go-logging"

	"github.com/bioc/switchde/sigmoid"
)

const smallDiff = 1e-6

func init() {
	// disable logging for benchmark & normal usage
	logging.SetLevel(logging.WARNING, "emodel")
	logging.SetLevel(logging.WARNING, "optimize")
}

func TestNullLogLikelihood(tst *testing.T) {
	// x = {1, 2}: mu = 1.5, sigma^2 = 0.25,
	// lnL = -(log(pi/2) + 1)
	mu, lnL := NullLogLikelihood([]float64{1, 2})
	if math.Abs(mu-1.5) > smallDiff {
		tst.Errorf("null mean %v, expected 1.5", mu)
	}
	ref := -(math.Log(math.Pi/2) + 1)
	if math.Abs(lnL-ref) > smallDiff {
		tst.Errorf("null lnL %v, expected %v", lnL, ref)
	}
}

func TestSigmoidModelFlatEqualsNull(tst *testing.T) {
	x := []float64{1, 3, 2, 4, 2.5, 3.5}
	t := []float64{0, 0.2, 0.4, 0.6, 0.8, 1}
	m := NewSigmoidModel(x, t)

	mu, nullL := NullLogLikelihood(x)
	// with k=0 the sigmoid is the constant mu0/2, so mu0=2*mu
	// reproduces the null model exactly
	m.SetParameters(2*mu, 0, 0.5)
	if l := m.Likelihood(); math.Abs(l-nullL) > smallDiff {
		tst.Errorf("flat sigmoid lnL %v, null lnL %v", l, nullL)
	}
}

func TestSigmoidModelPerfectFit(tst *testing.T) {
	// noise-free data: the likelihood at the true parameters must
	// exceed the null by a wide margin
	t := make([]float64, 50)
	x := make([]float64, 50)
	for i := range t {
		t[i] = float64(i) / 49
		x[i] = sigmoid.Mean(t[i], 10, 4, 0.5)
	}
	m := NewSigmoidModel(x, t)
	m.SetParameters(10, 4, 0.5)
	l := m.Likelihood()
	_, nullL := NullLogLikelihood(x)
	if l <= nullL {
		tst.Errorf("true-parameter lnL %v not above null %v", l, nullL)
	}
}

func TestSigmoidModelCopy(tst *testing.T) {
	x := []float64{1, 2, 3, 4}
	t := []float64{0, 0.3, 0.6, 1}
	m := NewSigmoidModel(x, t)
	m.SetParameters(5, 2, 0.4)
	l := m.Likelihood()

	c := m.Copy()
	if cl := c.Likelihood(); math.Abs(cl-l) > smallDiff {
		tst.Errorf("copy lnL %v, original %v", cl, l)
	}
	// moving the copy must not disturb the original
	if err := c.GetFloatParameters().SetValues([]float64{3, 1, 0.2}); err != nil {
		tst.Fatal(err)
	}
	if nl := m.Likelihood(); math.Abs(nl-l) > smallDiff {
		tst.Errorf("original changed after modifying copy: %v vs %v", nl, l)
	}
}

func TestStartValues(tst *testing.T) {
	x := []float64{0, 0, 1, 2, 8, 9, 10, 9.5, 10, 8.5}
	t := []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}

	if k := startK(x, t); k <= 0 {
		tst.Errorf("increasing gene got starting k=%v", k)
	}
	xr := make([]float64, len(x))
	for i, v := range x {
		xr[len(x)-1-i] = v
	}
	if k := startK(xr, t); k >= 0 {
		tst.Errorf("decreasing gene got starting k=%v", k)
	}
	if mu0 := startMu0(x); mu0 < 8 {
		tst.Errorf("starting mu0=%v below the top expression values", mu0)
	}
	if t0 := startT0(t); t0 < 0.3 || t0 > 0.6 {
		tst.Errorf("starting t0=%v far from the median", t0)
	}
}

func TestStartLambda(tst *testing.T) {
	noZeros := []float64{1, 2, 3, 4}
	if l := startLambda(noZeros); l > 0.1 {
		tst.Errorf("no zeros must start near the no-dropout corner, got lambda=%v", l)
	}
	withZeros := []float64{0, 0, 2, 4}
	l := startLambda(withZeros)
	if l <= 0 || math.IsInf(l, 0) {
		tst.Fatalf("bad starting lambda %v", l)
	}
	// exp(-mu^2/lambda) should reproduce the zero fraction at the
	// mean nonzero level (mu=3, zfrac=0.5)
	if p := math.Exp(-9 / l); math.Abs(p-0.5) > smallDiff {
		tst.Errorf("starting lambda does not match zero fraction: p=%v", p)
	}
}

func TestZeroInflatedNoZeros(tst *testing.T) {
	x := []float64{1, 2.5, 4, 6, 8, 8.5}
	t := []float64{0, 0.2, 0.4, 0.6, 0.8, 1}

	zi := NewZeroInflatedModel(x, t, false)
	zi.EStep()
	for i, r := range zi.resp {
		if r != 0 {
			tst.Errorf("nonzero cell %d got dropout responsibility %v", i, r)
		}
	}

	// with lambda=0 the mixture degenerates to the plain Gaussian
	// sigmoid model
	sm := NewSigmoidModel(x, t)
	sm.SetParameters(10, 3, 0.5)
	zi.SetParameters(10, 3, 0.5, 0)
	zi.EStep()
	zi.ProfileSigma()
	if d := math.Abs(zi.ObservedLogLikelihood() - sm.Likelihood()); d > 1e-4 {
		tst.Errorf("degenerate mixture disagrees with Gaussian model by %v", d)
	}
}

func TestZeroInflatedEStep(tst *testing.T) {
	x := []float64{0, 0, 3, 5, 7, 8}
	t := []float64{0, 0.2, 0.4, 0.6, 0.8, 1}
	zi := NewZeroInflatedModel(x, t, false)
	zi.EStep()
	for i, r := range zi.resp {
		if r < 0 || r > 1 {
			tst.Fatalf("responsibility %v out of [0,1] for cell %d", r, i)
		}
		if x[i] != 0 && r != 0 {
			tst.Errorf("nonzero cell %d got responsibility %v", i, r)
		}
	}
}

func TestZeroInflatedConstMean(tst *testing.T) {
	x := []float64{0, 2, 3, 4}
	t := []float64{0, 0.3, 0.6, 1}
	zi := NewZeroInflatedModel(x, t, true)
	pars := zi.GetFloatParameters()
	if len(pars) != 2 {
		tst.Fatalf("constant-mean model has %d parameters, expected 2", len(pars))
	}
	if pars[0].Name() != "mu" || pars[1].Name() != "lambda" {
		tst.Errorf("unexpected parameter names: %v", pars.Names())
	}
	zi.EStep()
	if l := zi.Likelihood(); math.IsNaN(l) {
		tst.Error("NaN objective for constant-mean model")
	}
}

func TestZeroInflatedObjectiveFinite(tst *testing.T) {
	rand.Seed(1)
	x := make([]float64, 40)
	t := make([]float64, 40)
	for i := range x {
		t[i] = float64(i) / 39
		x[i] = sigmoid.Mean(t[i], 6, 3, 0.5) + rand.NormFloat64()*0.5
		if x[i] < 0.5 {
			x[i] = 0
		}
	}
	zi := NewZeroInflatedModel(x, t, false)
	zi.EStep()
	if q := zi.Likelihood(); math.IsInf(q, 0) || math.IsNaN(q) {
		tst.Fatalf("non-finite M-step objective: %v", q)
	}
	if l := zi.ObservedLogLikelihood(); math.IsInf(l, 0) || math.IsNaN(l) {
		tst.Fatalf("non-finite observed log-likelihood: %v", l)
	}
}

func TestThreshold(tst *testing.T) {
	x := []float64{0.001, 0.02, 0, 1.5, 0.0099}
	Threshold(x, 0.01)
	expected := []float64{0, 0.02, 0, 1.5, 0}
	for i := range x {
		if x[i] != expected[i] {
			tst.Errorf("Threshold[%d]=%v, expected %v", i, x[i], expected[i])
		}
	}
}

func TestAllZero(tst *testing.T) {
	if !AllZero([]float64{0, 0, 0}) {
		tst.Error("AllZero false for zero vector")
	}
	if AllZero([]float64{0, 1e-9, 0}) {
		tst.Error("AllZero true for nonzero vector")
	}
}

func TestNewDataValidation(tst *testing.T) {
	x := mat64.NewDense(2, 4, []float64{
		1, 2, 3, 4,
		0, 1, 0, 2,
	})
	t := []float64{0, 0.3, 0.6, 1}

	if _, err := NewData(x, []string{"a", "b"}, t); err != nil {
		tst.Errorf("valid data rejected: %v", err)
	}
	if _, err := NewData(x, []string{"a"}, t); err == nil {
		tst.Error("gene name count mismatch not detected")
	}
	if _, err := NewData(x, []string{"a", "b"}, t[:3]); err == nil {
		tst.Error("pseudotime length mismatch not detected")
	}
	if _, err := NewData(x, []string{"a", "b"}, []float64{1, 1, 1, 1}); err == nil {
		tst.Error("constant pseudotime not detected")
	}
	small := mat64.NewDense(1, 3, []float64{1, 2, 3})
	if _, err := NewData(small, []string{"a"}, []float64{0, 0.5, 1}); err == nil {
		tst.Error("too few cells not detected")
	}
}

func TestReadExpression(tst *testing.T) {
	in := "c1\tc2\tc3\n" +
		"geneA\t0\t1.5\t3\n" +
		"geneB\t2\t0\t0.5\n"
	x, genes, err := ReadExpression(strings.NewReader(in))
	if err != nil {
		tst.Fatal(err)
	}
	if len(genes) != 2 || genes[0] != "geneA" || genes[1] != "geneB" {
		tst.Errorf("unexpected gene names: %v", genes)
	}
	if r, c := x.Dims(); r != 2 || c != 3 {
		tst.Fatalf("unexpected matrix shape %dx%d", r, c)
	}
	if v := x.At(0, 1); v != 1.5 {
		tst.Errorf("x[0,1]=%v, expected 1.5", v)
	}

	bad := "c1\tc2\ngeneA\t1\n"
	if _, _, err := ReadExpression(strings.NewReader(bad)); err == nil {
		tst.Error("short row not detected")
	}
}

func benchmarkData(n int) (x, t []float64) {
	rand.Seed(42)
	x = make([]float64, n)
	t = make([]float64, n)
	for i := range x {
		t[i] = float64(i) / float64(n-1)
		x[i] = sigmoid.Mean(t[i], 10, 5, 0.5) + rand.NormFloat64()
		if x[i] < 0.5 {
			x[i] = 0
		}
	}
	return
}

func BenchmarkSigmoidLikelihood(b *testing.B) {
	x, t := benchmarkData(500)
	m := NewSigmoidModel(x, t)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.SetParameters(10, 5, 0.5)
		m.Likelihood()
	}
}

func BenchmarkZeroInflatedObjective(b *testing.B) {
	x, t := benchmarkData(500)
	m := NewZeroInflatedModel(x, t, false)
	m.EStep()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.SetParameters(10, 5, 0.5, 1)
		m.Likelihood()
	}
}

func TestReadPseudotime(tst *testing.T) {
	t, err := ReadPseudotime(strings.NewReader("0 0.25\n0.5\n0.75 1\n"))
	if err != nil {
		tst.Fatal(err)
	}
	if len(t) != 5 || t[2] != 0.5 {
		tst.Errorf("unexpected pseudotime: %v", t)
	}
	if _, err := ReadPseudotime(strings.NewReader("0 x 1")); err == nil {
		tst.Error("bad value not detected")
	}
}
