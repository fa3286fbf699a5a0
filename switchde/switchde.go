/*

Switchde fits switch-like differential expression models to single-cell
RNA-seq data ordered by pseudotime. For every gene a parametric sigmoid
model of expression is maximized and compared to a constant-mean null
with a likelihood-ratio test; the p-values are corrected over all genes
with the Benjamini-Hochberg procedure.

The basic usage looks like this:

	switchde expression.tsv pseudotime.txt

, this will fit the Gaussian sigmoid model to every gene with the
default optimizer (LBFGS-B) and print the result table.

For data with many dropout zeros the zero-inflated mode fits a mixture
model by expectation-maximization:

	switchde --zi expression.tsv pseudotime.txt

To see all the options run:

	switchde -h

*/
package main

import (
	"encoding/json"
	"math/rand"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/op/go-logging"

	"github.com/bioc/switchde/checkpoint"
	"github.com/bioc/switchde/emodel"
	"github.com/bioc/switchde/fit"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = "branch: " + gitbranch + ", revision: " + githash + ", build time: " + buildstamp

// Logger settings.
var log = logging.MustGetLogger("switchde")
var formatter = logging.MustStringFormatter(`%{message}`)

// command-line options
var (
	// application
	app = kingpin.New("switchde", "switch-like differential expression testing for single-cell data").Version(version)

	// input expression matrix and pseudotime
	expressionFileName = app.Arg("expression", "tab-separated expression matrix (genes as rows, cells as columns)").Required().ExistingFile()
	pseudotimeFileName = app.Arg("pseudotime", "pseudotime values, one per cell").Required().ExistingFile()

	// model parameters
	zeroInflated = app.Flag("zi", "fit the zero-inflated dropout model using EM").Bool()
	threshold    = app.Flag("threshold", "set expression values below the threshold to zero before fitting").Default("0.01").Float64()
	maxIter      = app.Flag("maxiter", "maximum number of EM iterations (with --zi)").Default("1000").Int()
	tol          = app.Flag("tol", "EM convergence tolerance on the log-likelihood change (with --zi)").Default("1e-2").Float64()

	// optimizer parameters
	iterations = app.Flag("iter", "iteration limit for a single optimization").Default("10000").Int()
	method     = app.Flag("method", "optimization method to use "+
		"(lbfgsb: limited-memory Broyden–Fletcher–Goldfarb–Shanno with bounding constraints, "+
		"simplex: downhill simplex, "+
		"none: just compute likelihood at the starting point, no optimization"+
		")").Default("lbfgsb").String()

	// significance
	sThr = app.Flag("sthr", "q-value threshold for reporting the number of significant genes").Default("0.05").Float64()

	// technical
	nThreads   = app.Flag("nt", "number of threads to use").Int()
	seed       = app.Flag("seed", "random generator seed, default time based").Default("-1").Int64()
	cpuProfile = app.Flag("cpuprofile", "write cpu profile to file").String()

	// input/output
	outLogF     = app.Flag("log", "write log to a file").String()
	outF        = app.Flag("out", "write the result table to a file (default: stdout)").String()
	checkpointF = app.Flag("checkpoint", "checkpoint database for resuming interrupted runs").String()
	logLevel    = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
	jsonF = app.Flag("json", "write json output to a file").String()
)

func run() (summary *RunSummary) {
	startTime := time.Now()
	summary = &RunSummary{}

	expressionFile, err := os.Open(*expressionFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer expressionFile.Close()

	x, genes, err := emodel.ReadExpression(expressionFile)
	if err != nil {
		log.Fatal(err)
	}

	pseudotimeFile, err := os.Open(*pseudotimeFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer pseudotimeFile.Close()

	pseudotime, err := emodel.ReadPseudotime(pseudotimeFile)
	if err != nil {
		log.Fatal(err)
	}

	data, err := emodel.NewData(x, genes, pseudotime)
	if err != nil {
		log.Fatal(err)
	}
	summary.NGenes = data.NGenes()
	summary.NCells = data.NCells()

	settings := &fit.Settings{
		ZeroInflated: *zeroInflated,
		Threshold:    *threshold,
		Method:       *method,
		Iterations:   *iterations,
		MaxIter:      *maxIter,
		Tol:          *tol,
		Threads:      runtime.GOMAXPROCS(0),
	}
	summary.Settings = settings

	if *zeroInflated {
		log.Info("Using the zero-inflated model (EM)")
	} else {
		log.Info("Using the Gaussian sigmoid model")
	}
	log.Infof("Using %s optimization.", *method)

	runner := fit.NewRunner(data, settings)

	if *checkpointF != "" {
		store, err := checkpoint.Open(*checkpointF)
		if err != nil {
			log.Fatal("Error opening checkpoint database:", err)
		}
		defer store.Close()
		runner.Checkpoint = store
	}

	table, err := runner.Run()
	if err != nil {
		log.Fatal(err)
	}
	summary.Results = table

	significant := table.Significant(*sThr)
	summary.NSignificant = len(significant.Records)
	summary.LRTCriticalValue = fit.CriticalValue(*sThr)
	log.Noticef("%d of %d genes significant at q<%v (uncorrected LRT critical value %.4f)",
		summary.NSignificant, summary.NGenes, *sThr, summary.LRTCriticalValue)

	f := os.Stdout
	if *outF != "" {
		f, err = os.Create(*outF)
		if err != nil {
			log.Fatal("Error creating output file:", err)
		}
		defer f.Close()
	}
	if err := table.WriteTSV(f); err != nil {
		log.Fatal("Error writing the result table:", err)
	}

	endTime := time.Now()

	deltaT := endTime.Sub(startTime)
	log.Noticef("Running time: %v", deltaT)
	summary.Time = deltaT.Seconds()

	return
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	logging.SetLevel(level, "switchde")
	logging.SetLevel(level, "fit")
	logging.SetLevel(level, "emodel")
	logging.SetLevel(level, "optimize")
	logging.SetLevel(level, "checkpoint")

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	if *seed == -1 {
		*seed = time.Now().UnixNano()
		log.Debug("Random seed from time")
	}
	log.Infof("Random seed=%v", *seed)

	rand.Seed(*seed)
	runtime.GOMAXPROCS(*nThreads)

	effectiveNThreads := runtime.GOMAXPROCS(0)
	log.Infof("Using threads: %d.\n", effectiveNThreads)

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	summary := run()
	summary.NThreads = effectiveNThreads
	summary.Version = version
	summary.CommandLine = os.Args
	summary.Seed = *seed

	// output summary in json format
	if *jsonF != "" {
		j, err := json.Marshal(summary)
		if err != nil {
			log.Error(err)
		} else {
			log.Debug(string(j))
			f, err := os.Create(*jsonF)
			if err != nil {
				log.Error("Error creating json output file:", err)
			} else {
				f.Write(j)
				f.Close()
			}
		}
	}
}
