// internal/recovery/recovery.go
package recovery

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
)

// Replaced in tests.
var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// HandlePanic should be deferred at the top of main().
// It reports the panic with its stack and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		report(stderr, r, debug.Stack())
		exit(1)
	}
}

// HandlePanicFunc is HandlePanic for pipeline goroutines: cleanup runs
// before the process exits, so the audio device is released.
//
//	g.Go(func() error {
//		defer recovery.HandlePanicFunc(l.stopDevice)
//		return l.captureLoop(ctx, segments)
//	})
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		report(stderr, r, debug.Stack())
		if cleanup != nil {
			cleanup()
		}
		exit(1)
	}
}

func report(w io.Writer, r any, stack []byte) {
	_, _ = fmt.Fprintf(w, "FATAL: %v\n\nStack trace:\n%s\n", r, stack)
}
