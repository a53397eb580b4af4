// Package version holds build information set with -ldflags.
package version

import (
	"fmt"
	"io"
	"os"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String returns a one line description of the build.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s)", Version, Commit, BuildDate, runtime.Version())
}

// Fprint writes the build description of program to w.
func Fprint(w io.Writer, program string) {
	fmt.Fprintf(w, "%s %s\n", program, String())
}

// ShowVersion prints the build description to stdout.
func ShowVersion() {
	Fprint(os.Stdout, "omada-poe")
}
