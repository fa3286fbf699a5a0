// plotfit plots the expression of a single gene against pseudotime
// together with its fitted sigmoid curve.
package main

import (
	"flag"
	"fmt"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/bioc/switchde/emodel"
	"github.com/bioc/switchde/fit"
	"github.com/bioc/switchde/sigmoid"
)

const curvePoints = 200

func main() {
	expressionFN := flag.String("expression", "", "expression matrix file")
	pseudotimeFN := flag.String("pseudotime", "", "pseudotime file")
	gene := flag.String("gene", "", "gene identifier to plot")
	zi := flag.Bool("zi", false, "use the zero-inflated model")
	out := flag.String("out", "fit.png", "output file")
	flag.Parse()

	if *expressionFN == "" || *pseudotimeFN == "" || *gene == "" {
		flag.Usage()
		os.Exit(1)
	}

	ef, err := os.Open(*expressionFN)
	if err != nil {
		panic(err)
	}
	defer ef.Close()
	x, genes, err := emodel.ReadExpression(ef)
	if err != nil {
		panic(err)
	}

	pf, err := os.Open(*pseudotimeFN)
	if err != nil {
		panic(err)
	}
	defer pf.Close()
	pseudotime, err := emodel.ReadPseudotime(pf)
	if err != nil {
		panic(err)
	}

	data, err := emodel.NewData(x, genes, pseudotime)
	if err != nil {
		panic(err)
	}

	idx := -1
	for i, g := range genes {
		if g == *gene {
			idx = i
			break
		}
	}
	if idx < 0 {
		panic(fmt.Sprintf("gene %s not found", *gene))
	}

	settings := fit.DefaultSettings()
	settings.ZeroInflated = *zi
	table, err := fit.Fit(data, settings)
	if err != nil {
		panic(err)
	}
	rec := table.Get(*gene)
	if rec.NA() {
		panic(fmt.Sprintf("gene %s could not be fitted", *gene))
	}
	fmt.Printf("mu0=%v k=%v t0=%v pval=%v\n", rec.Mu0, rec.K, rec.T0, rec.Pval)

	p, err := plot.New()
	if err != nil {
		panic(err)
	}
	p.X.Label.Text = "pseudotime"
	p.Y.Label.Text = "expression"
	p.Title.Text = *gene

	obs := make(plotter.XYs, data.NCells())
	expr := data.Gene(idx)
	for i := range obs {
		obs[i].X = pseudotime[i]
		obs[i].Y = expr[i]
	}

	tmin, tmax := pseudotime[0], pseudotime[0]
	for _, t := range pseudotime {
		if t < tmin {
			tmin = t
		}
		if t > tmax {
			tmax = t
		}
	}
	curve := make(plotter.XYs, curvePoints)
	for i := range curve {
		t := tmin + (tmax-tmin)*float64(i)/float64(curvePoints-1)
		curve[i].X = t
		curve[i].Y = sigmoid.Mean(t, rec.Mu0, rec.K, rec.T0)
	}

	err = plotutil.AddScatters(p, "observed", obs)
	if err != nil {
		panic(err)
	}
	err = plotutil.AddLines(p, "fit", curve)
	if err != nil {
		panic(err)
	}

	if err := p.Save(4*vg.Inch, 4*vg.Inch, *out); err != nil {
		panic(err)
	}
}
