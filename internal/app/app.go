// internal/app/app.go
package app

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"mstouv-core/mset"
	"mstouv-core/uvfits"
	"mstouv/internal/cli"
	"mstouv/internal/cmdutil"
	"mstouv/internal/config"
	"mstouv/internal/jsonutil"
	"mstouv/internal/pipeline"
	"mstouv/internal/version"
	"mstouv/pkg/api"
)

// RunContext converts one measurement set and returns the process exit code:
// 0 success, 2 usage or input errors, 3 runtime failures, 130 cancellation.
func RunContext(parent context.Context, argv []string, stdout, stderr io.Writer) int {
	outw := bufio.NewWriter(stdout)
	defer func() { _ = outw.Flush() }()

	fs := cli.NewFlagSet("mstouv")
	fs.SetOutput(io.Discard)

	if len(argv) == 0 {
		fs.SetOutput(outw)
		fs.Usage()
		return 0
	}

	opts, err := cli.ParseArgs(fs, argv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(outw)
			fs.Usage()
			return 0
		}
		_, _ = fmt.Fprintln(stderr, err)
		fs.SetOutput(outw)
		fs.Usage()
		return 2
	}

	if opts.Version {
		_, _ = fmt.Fprintf(outw, "mstouv version %s\n", version.Version)
		return 0
	}

	if opts.ConfigFile != "" {
		c, err := config.Load(opts.ConfigFile)
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return 2
		}
		config.Apply(&opts, c)
	}

	set, err := mset.Open(opts.MSPath)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		if errors.Is(err, mset.ErrInputNotFound) {
			return 2
		}
		return 3
	}
	defer func() { _ = set.Close() }()

	split, err := pipeline.NewSplitter(opts.Output, opts.OneToOne, set, uvfits.Options{
		Object:     opts.Object,
		Telescope:  opts.Telescope,
		Instrument: opts.Instrument,
		Software:   "mstouv " + version.Version,
	})
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}

	cfg := pipeline.Config{
		VisCol:            opts.VisCol,
		UndoPhaseTracking: opts.UndoPhaseTracking,
		ResetWeights:      opts.ResetWeights,
		Threads:           opts.Threads,
		BatchRows:         opts.BatchRows,
		Progress: func(done, total int) {
			cmdutil.Progressf(stderr, opts.Quiet, done, total)
		},
	}
	if err := pipeline.Run(parent, set, split, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			cmdutil.Warnf(stderr, opts.Quiet, "cancelled, partial outputs removed")
			return 130
		}
		_, _ = fmt.Fprintln(stderr, err)
		return 3
	}

	if opts.JSON {
		sum := api.RunSummaryV1{
			Input:               opts.MSPath,
			VisColumn:           opts.VisCol,
			PhaseTrackingUndone: opts.UndoPhaseTracking,
			Outputs:             []api.OutputFileV1{},
		}
		for _, o := range split.Outputs() {
			sum.Outputs = append(sum.Outputs, api.OutputFileV1{
				Path: o.Path, Band: o.Band, Groups: o.Groups, RefFreqHz: o.RefFreqHz,
			})
		}
		if err := jsonutil.EncodePretty(outw, sum); err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return 3
		}
		return 0
	}
	for _, p := range split.Paths() {
		_, _ = fmt.Fprintln(outw, p)
	}
	return 0
}

// Run is RunContext without external cancellation.
func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}
