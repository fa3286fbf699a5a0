package main

import "github.com/bioc/switchde/fit"

// RunSummary is storing switchde run summary information.
type RunSummary struct {
	// Version stores switchde version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// Seed is the seed used for random number generation initialization.
	Seed int64 `json:"seed"`
	// NThreads is the number of processes used.
	NThreads int `json:"nThreads"`
	// NGenes and NCells are the dimensions of the expression matrix.
	NGenes int `json:"nGenes"`
	NCells int `json:"nCells"`
	// NSignificant is the number of genes below the q-value threshold.
	NSignificant int `json:"nSignificant"`
	// LRTCriticalValue is the chi-squared critical value of the
	// likelihood-ratio statistic at the significance threshold,
	// before multiple-testing correction.
	LRTCriticalValue float64 `json:"lrtCriticalValue"`
	// Settings are the fitting settings of the call.
	Settings *fit.Settings `json:"settings"`
	// Results is the per-gene result table.
	Results *fit.ResultTable `json:"results"`
	// Time is the computations time in seconds.
	Time float64 `json:"time"`
}
