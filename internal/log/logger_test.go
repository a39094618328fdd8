// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   LogLevel
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warning", LevelWarn, true},
		{"warn", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
		{"", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})

	SetLevel(LevelWarn)
	Infof("Pipeline: %s", "hidden")
	Warnf("Pipeline: %s", "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing: %q", out)
	}
	if GetLevel() != LevelWarn {
		t.Errorf("GetLevel() = %v, want %v", GetLevel(), LevelWarn)
	}
}

func TestLevelString(t *testing.T) {
	if LevelDebug.String() != "DEBUG" || LogLevel(42).String() != "UNKNOWN" {
		t.Errorf("unexpected level names: %s %s", LevelDebug, LogLevel(42))
	}
}

func TestFatalfIgnoresLevel(t *testing.T) {
	var buf bytes.Buffer
	var code int
	SetOutput(&buf)
	logger.ExitFunc = func(c int) { code = c }
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
		logger.ExitFunc = os.Exit
	})

	SetLevel(LevelFatal)
	Fatalf("Audio: %s", "engine gone")

	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if out := buf.String(); !strings.Contains(out, "engine gone") || !strings.Contains(out, "level=fatal") {
		t.Errorf("fatal message missing: %q", out)
	}
}
