package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerNew(t *testing.T) {
	testCases := []struct {
		name   string
		level  string
		format string
	}{
		{"debug json", "debug", "json"},
		{"info console", "info", "console"},
		{"warn default format", "warn", ""},
		{"error level", "error", "json"},
		{"empty level defaults to info", "", "json"},
		{"invalid level defaults to info", "invalid", "console"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := NewWithFormat(tc.level, tc.format)
			if err != nil {
				t.Fatalf("Expected no error for level '%s', got %v", tc.level, err)
			}
			if logger == nil {
				t.Fatal("Expected non-nil logger")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	testCases := map[string]zapcore.Level{
		"debug":   zap.DebugLevel,
		"info":    zap.InfoLevel,
		"warn":    zap.WarnLevel,
		"error":   zap.ErrorLevel,
		"verbose": zap.InfoLevel,
	}
	for in, want := range testCases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWrappedLoggerNamedWith(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := Wrap(zap.New(core)).Named("orchestrator").With(zap.String("task_id", "T1"))

	l.Info("poll")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "orchestrator" {
		t.Errorf("Expected logger name 'orchestrator', got '%s'", entries[0].LoggerName)
	}
	if entries[0].ContextMap()["task_id"] != "T1" {
		t.Errorf("Expected task_id field 'T1', got %v", entries[0].ContextMap()["task_id"])
	}
}

func TestWrapNilIsNop(t *testing.T) {
	l := Wrap(nil)
	l.Info("discarded")
	if Nop().Zap() == nil {
		t.Fatal("Expected non-nil zap logger")
	}
	if WithCallerSkip(nil, 1) != nil {
		t.Fatal("Expected nil passthrough")
	}
}
