// classify prints a JSON reading for each strip image given on the command line.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/GriffinCanCode/stripscan/internal/analysis"
	"github.com/GriffinCanCode/stripscan/internal/config"
	"github.com/GriffinCanCode/stripscan/internal/orchestrator/scan"
)

type result struct {
	File    string            `json:"file"`
	Reading *analysis.Reading `json:"reading,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func main() {
	var (
		crop float64
		seed uint64
	)
	flag.Float64Var(&crop, "crop", 0, "centered fraction of each image to classify (0 uses the whole image)")
	flag.Uint64Var(&seed, "seed", 0, "cluster seed for reproducible output (0 is unseeded)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: classify [flags] image...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load().Analysis()
	if seed != 0 {
		cfg.Seed = seed
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	failed := false
	for _, path := range flag.Args() {
		res := result{File: path}
		r, err := classifyFile(path, crop, cfg)
		if err != nil {
			res.Error = err.Error()
			failed = true
		} else {
			res.Reading = &r
		}
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func classifyFile(path string, crop float64, cfg analysis.Config) (analysis.Reading, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return analysis.Reading{}, err
	}
	return scan.ClassifyBytes(data, crop, cfg)
}
