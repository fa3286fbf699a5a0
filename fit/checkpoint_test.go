package fit

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/bioc/switchde/checkpoint"
)

func TestRunnerResume(tst *testing.T) {
	rng := rand.New(rand.NewSource(10))
	genes := map[string][]float64{}
	var order []string
	var t []float64
	for _, name := range []string{"g1", "g2", "g3"} {
		var x []float64
		x, t = genGene(rng, 30, 8, 8, 0.5, 0.5)
		genes[name] = x
		order = append(order, name)
	}
	data := newData(tst, t, genes, order)

	path := filepath.Join(tst.TempDir(), "cp.db")
	store, err := checkpoint.Open(path)
	if err != nil {
		tst.Fatal(err)
	}

	runner := NewRunner(data, DefaultSettings())
	runner.Checkpoint = store
	t1, err := runner.Run()
	if err != nil {
		tst.Fatal(err)
	}
	if n, err := store.Count(); err != nil || n != len(order) {
		tst.Fatalf("checkpoint holds %d genes (%v), expected %d", n, err, len(order))
	}
	if err := store.Close(); err != nil {
		tst.Fatal(err)
	}

	// a rerun over the same database must reuse every record and
	// reproduce the table, q-values included
	store, err = checkpoint.Open(path)
	if err != nil {
		tst.Fatal(err)
	}
	defer store.Close()

	runner = NewRunner(data, DefaultSettings())
	runner.Checkpoint = store
	t2, err := runner.Run()
	if err != nil {
		tst.Fatal(err)
	}
	for i := range t1.Records {
		r1, r2 := t1.Records[i], t2.Records[i]
		if r1.Gene != r2.Gene {
			tst.Fatalf("gene order differs after resume: %s vs %s", r1.Gene, r2.Gene)
		}
		if math.Abs(r1.Pval-r2.Pval) > smallDiff || math.Abs(r1.Qval-r2.Qval) > smallDiff {
			tst.Errorf("gene %s: resumed fit differs (pval %v vs %v)", r1.Gene, r1.Pval, r2.Pval)
		}
	}
}
