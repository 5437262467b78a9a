// ABOUTME: Tests for leveled logging output and verbosity gating
// ABOUTME: Validates level prefixes and the verbose switch

package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestDebugGatedByVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	SetVerbose(false)
	Debug("hidden message")
	if buf.Len() > 0 {
		t.Error("Debug produced output while not verbose")
	}

	SetVerbose(true)
	defer SetVerbose(false)
	Debug("visible message")
	if !strings.Contains(buf.String(), "[DEBUG] visible message") {
		t.Errorf("missing debug output, got %q", buf.String())
	}
}

func TestLevelPrefixes(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	Info("info %d", 1)
	Warn("warn %d", 2)
	Error("error %d", 3)

	out := buf.String()
	for _, want := range []string{"[INFO] info 1", "[WARN] warn 2", "[ERROR] error 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output %q", want, out)
		}
	}
}
