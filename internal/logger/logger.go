// ABOUTME: Leveled logging with verbosity control for the connection layer
// ABOUTME: Debug output is gated behind a verbose flag; higher levels always print

package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
)

var verbose atomic.Bool

// SetVerbose enables or disables DEBUG-level output.
func SetVerbose(v bool) {
	verbose.Store(v)
}

// IsVerbose returns the current verbose setting.
func IsVerbose() bool {
	return verbose.Load()
}

// SetOutput redirects log output; nil restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		log.SetOutput(os.Stderr)
		return
	}
	log.SetOutput(w)
}

// Debug logs at DEBUG level, only when verbose is enabled.
func Debug(format string, args ...any) {
	if verbose.Load() {
		log.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
	}
}

// Info logs at INFO level.
func Info(format string, args ...any) {
	log.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs at WARN level.
func Warn(format string, args ...any) {
	log.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs at ERROR level.
func Error(format string, args ...any) {
	log.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}
