package logging

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerFormatsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWithCore(core).WithComponent("scheduler").WithFields(map[string]any{"pass": 3})

	log.Debug("pass took %dms", 12)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Message != "pass took 12ms" {
		t.Errorf("message = %q", e.Message)
	}
	ctx := e.ContextMap()
	if ctx["component"] != "scheduler" {
		t.Errorf("component = %v", ctx["component"])
	}
	if ctx["pass"] != int64(3) {
		t.Errorf("pass = %v (%T)", ctx["pass"], ctx["pass"])
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelWarn, Output: &buf})

	log.Info("hidden")
	log.Warn("shown %s", "here")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message written at warn level")
	}
	if !strings.Contains(buf.String(), "shown here") {
		t.Errorf("output = %q", buf.String())
	}

	log.SetLevel(LevelDebug)
	if !log.Enabled(LevelDebug) {
		t.Error("debug should be enabled after SetLevel")
	}
	log.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("debug message missing after SetLevel")
	}
}

func TestNop(t *testing.T) {
	log := OrNop(nil)
	log.Error("nothing %d", 1)
	if log.Enabled(LevelError) {
		t.Error("nop logger should not be enabled")
	}
}
