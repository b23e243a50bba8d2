// internal/unphase/options.go
package unphase

import (
	"errors"
	"flag"
	"fmt"

	"mstouv/internal/version"
)

// Options holds the uvunphase flags and arguments.
type Options struct {
	Input     string // positional uvfits path
	Output    string
	Overwrite bool
	Quiet     bool
	Version   bool
}

// NewFlagSet returns a configured FlagSet with custom usage/help.
func NewFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(),
			`%s: reverse phase tracking in an existing uvfits file

Version: %s

Usage:
  %s --output <copy> <uvfits>
  %s --overwrite <uvfits>

Each visibility is rotated back by its recorded w delay and the reference
frequency is shifted down by half a channel.

`, name, version.Version, name, name)
		fs.PrintDefaults()
	}
	return fs
}

// ParseArgs registers and parses all flags, returns an Options struct.
func ParseArgs(fs *flag.FlagSet, argv []string) (Options, error) {
	var opt Options
	var help bool

	fs.StringVar(&opt.Output, "output", "", "write the result to this path, leaving the input untouched")
	fs.BoolVar(&opt.Overwrite, "overwrite", false, "rewrite the input file in place [false]")
	fs.BoolVar(&opt.Quiet, "quiet", false, "suppress warnings [false]")
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
	if opt.Version {
		return opt, nil
	}

	switch fs.NArg() {
	case 0:
		return opt, errors.New("a uvfits path is required")
	case 1:
		opt.Input = fs.Arg(0)
	default:
		return opt, fmt.Errorf("unexpected arguments after %q", fs.Arg(0))
	}
	if (opt.Output == "") == !opt.Overwrite {
		return opt, errors.New("exactly one of --output and --overwrite is required")
	}
	return opt, nil
}
