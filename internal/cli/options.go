// internal/cli/options.go
package cli

import (
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"mstouv/internal/version"
)

// Options holds all CLI flags and arguments.
type Options struct {
	// Input
	MSPath string // positional measurement-set path
	VisCol string

	// Conversion
	UndoPhaseTracking bool
	ResetWeights      bool
	OneToOne          bool

	// Performance
	Threads   int
	BatchRows int

	// Output
	Output     string
	Object     string
	Telescope  string
	Instrument string

	ConfigFile string
	JSON       bool
	Quiet      bool
	Version    bool

	// set records which flags were given explicitly, so config-file values
	// only fill the gaps.
	set map[string]bool
}

// Explicit reports whether the named flag appeared on the command line.
func (o *Options) Explicit(name string) bool { return o.set[name] }

// NewFlagSet returns a configured FlagSet with custom usage/help.
func NewFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			`%s: measurement set to random-groups uvfits converter

Version: %s

Usage:
  %s [options] <measurement-set>

One uvfits file is written per spectral window.

`, name, version.Version, name)
		fs.PrintDefaults()
	}
	return fs
}

// ParseArgs registers and parses all flags, returns an Options struct.
func ParseArgs(fs *flag.FlagSet, argv []string) (Options, error) {
	var opt Options
	var help bool

	// Input
	fs.StringVar(&opt.VisCol, "vis-col", "DATA", "visibility column to read [DATA]")

	// Conversion
	fs.BoolVar(&opt.UndoPhaseTracking, "undo-phase-tracking", false, "reverse the phase-tracking correction [false]")
	fs.BoolVar(&opt.ResetWeights, "reset-weights", false, "write unit weights instead of WEIGHT_SPECTRUM [false]")
	fs.BoolVar(&opt.OneToOne, "one-to-one", false, "write a single output file regardless of band count [false]")

	// Performance
	fs.IntVar(&opt.Threads, "threads", 0, "number of worker threads (0 = all CPUs) [0]")
	fs.IntVar(&opt.BatchRows, "batch-rows", 0, "rows per pipeline batch (0 = default) [0]")

	// Output
	fs.StringVar(&opt.Output, "output", "", "output base path (default: input path without extension)")
	fs.StringVar(&opt.Object, "object", "", "OBJECT header value")
	fs.StringVar(&opt.Telescope, "telescope", "", "TELESCOP header value")
	fs.StringVar(&opt.Instrument, "instrument", "", "INSTRUME header value")

	fs.StringVar(&opt.ConfigFile, "config", "", "YAML run-configuration file")
	fs.BoolVar(&opt.JSON, "json", false, "print a JSON run summary instead of plain paths [false]")
	fs.BoolVar(&opt.Quiet, "quiet", false, "suppress warnings and progress [false]")
	fs.BoolVar(&opt.Version, "v", false, "print version and exit (shorthand) [false]")
	fs.BoolVar(&opt.Version, "version", false, "print version and exit [false]")
	fs.BoolVar(&help, "h", false, "show this help message (shorthand) [false]")

	if err := fs.Parse(argv); err != nil {
		return opt, err
	}
	if help {
		fs.Usage()
		return opt, flag.ErrHelp
	}
	opt.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { opt.set[f.Name] = true })
	if opt.Version {
		return opt, nil
	}

	// Validation
	switch fs.NArg() {
	case 0:
		return opt, errors.New("a measurement-set path is required")
	case 1:
		opt.MSPath = fs.Arg(0)
	default:
		return opt, fmt.Errorf("unexpected arguments after %q", fs.Arg(0))
	}
	if opt.Output == "" {
		opt.Output = DefaultOutputBase(opt.MSPath)
	}
	if opt.VisCol == "" {
		return opt, errors.New("--vis-col must not be empty")
	}
	if opt.Threads < 0 {
		return opt, errors.New("--threads must be ≥ 0")
	}
	if opt.BatchRows < 0 {
		return opt, errors.New("--batch-rows must be ≥ 0")
	}
	return opt, nil
}

// DefaultOutputBase derives the output base path from the input path by
// stripping the extension.
func DefaultOutputBase(msPath string) string {
	base := strings.TrimRight(msPath, string(filepath.Separator))
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
