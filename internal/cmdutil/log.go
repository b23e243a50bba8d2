// internal/cmdutil/log.go
package cmdutil

import (
	"fmt"
	"io"
)

// Warnf prints a warning line unless quiet.
func Warnf(dst io.Writer, quiet bool, format string, a ...any) {
	if quiet {
		return
	}
	_, _ = fmt.Fprintf(dst, "WARN: "+format+"\n", a...)
}

// Progressf prints a batch-progress line unless quiet.
func Progressf(dst io.Writer, quiet bool, done, total int) {
	if quiet {
		return
	}
	_, _ = fmt.Fprintf(dst, "processed %d/%d rows\n", done, total)
}
