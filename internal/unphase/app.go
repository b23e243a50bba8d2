// internal/unphase/app.go
package unphase

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"mstouv-core/phase"
	"mstouv-core/uvfits"
	"mstouv/internal/cmdutil"
	"mstouv/internal/version"
)

// RunContext rewrites one uvfits file and returns the process exit code.
func RunContext(parent context.Context, argv []string, stdout, stderr io.Writer) int {
	outw := bufio.NewWriter(stdout)
	defer func() { _ = outw.Flush() }()

	fs := NewFlagSet("uvunphase")
	fs.SetOutput(io.Discard)

	if len(argv) == 0 {
		fs.SetOutput(outw)
		fs.Usage()
		return 0
	}

	opts, err := ParseArgs(fs, argv)
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
		_, _ = fmt.Fprintf(outw, "uvunphase version %s\n", version.Version)
		return 0
	}

	target := opts.Input
	if opts.Output != "" {
		if err := copyFile(opts.Input, opts.Output); err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			if os.IsNotExist(err) {
				return 2
			}
			return 3
		}
		target = opts.Output
	}

	if err := Rewrite(parent, target); err != nil {
		if errors.Is(err, context.Canceled) {
			cmdutil.Warnf(stderr, opts.Quiet, "cancelled, %s may hold partially rotated data", target)
			return 130
		}
		_, _ = fmt.Fprintln(stderr, err)
		return 3
	}

	_, _ = fmt.Fprintln(outw, target)
	return 0
}

// Run is RunContext without external cancellation.
func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}

// Rewrite undoes phase tracking in place: every group's visibilities are
// rotated back by the group's recorded w delay, and the reference frequency
// drops by half a channel, the convention the legacy calibration pipeline
// expects.
func Rewrite(ctx context.Context, path string) error {
	u, err := uvfits.Edit(path)
	if err != nil {
		return err
	}
	defer func() { _ = u.Close() }()

	// Channel frequencies before the half-channel shift.
	freqs, err := u.ChanFreqs()
	if err != nil {
		return err
	}

	for i := 0; i < u.GCount; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		rec, err := u.ReadGroup(i)
		if err != nil {
			return err
		}
		phase.ReverseTriplets(rec[u.PCount:], float64(rec[2]), 0, freqs, u.NPol)
		if err := u.WriteGroup(i, rec); err != nil {
			return err
		}
	}

	crval4, err := u.Primary.Float("CRVAL4")
	if err != nil {
		return err
	}
	cdelt4, err := u.Primary.Float("CDELT4")
	if err != nil {
		return err
	}
	return u.PatchFloat("CRVAL4", crval4-cdelt4/2)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	return out.Close()
}
