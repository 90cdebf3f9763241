// Package logging carries the compiler's leveled diagnostic trail. The
// original implementation logs through INFO/ERROR/DBG/INPUT macros backed by
// colorized stdout (original_source's common.h, not itself in the filtered
// pack); this reimplements that triad over github.com/golang/glog the way
// google-kati logs its own parse/eval/exec trail, plus the colorized
// startup banner and closing summary line original_source/src/main.cpp
// prints around a run.
package logging

import (
	"fmt"

	"github.com/golang/glog"

	internalcolor "github.com/patos-lang/patosc/internal"
)

// Info logs a standard progress line: file being processed, pass starting,
// declaration dispatched. Mirrors original_source's INFO macro.
func Info(format string, args ...any) {
	glog.Infof(format, args...)
}

// Error logs a recoverable failure — one the driver reports and continues
// or exits from, as opposed to a transform.FatalError. Mirrors
// original_source's ERROR macro.
func Error(format string, args ...any) {
	glog.Errorf(format, args...)
}

// Debug logs verbose per-declaration tracing, gated behind -v=2 the way
// kati gates its substitution/eval traces. Mirrors original_source's DBG
// macro.
func Debug(format string, args ...any) {
	if glog.V(2) {
		glog.Infof(format, args...)
	}
}

// Banner prints the "▶ patosc" startup line original_source's main.cpp
// prints before resolving its input/output/include-path configuration.
func Banner(version string) {
	fmt.Printf("%s▶ patosc%s %s\n",
		internalcolor.StdoutColor(internalcolor.ColorCyan),
		internalcolor.StdoutColor(internalcolor.ColorReset),
		version)
}

// Summary prints the closing "✓ N file(s) processed" line.
func Summary(processed int) {
	color := internalcolor.ColorGreen
	if processed == 0 {
		color = internalcolor.ColorYellow
	}
	fmt.Printf("%s✓ %d file(s) processed%s\n",
		internalcolor.StdoutColor(color),
		processed,
		internalcolor.StdoutColor(internalcolor.ColorReset))
}

// Flush flushes glog's buffered log output, mirroring the
// `defer glog.Flush()` every glog-based main does.
func Flush() {
	glog.Flush()
}
