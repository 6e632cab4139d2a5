package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewValidLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := New(level)
		if err != nil {
			t.Fatalf("New(%q): %v", level, err)
		}
		if logger == nil {
			t.Fatalf("New(%q) returned nil logger", level)
		}
		logger.Sync()
	}
}

func TestNewDebugEnablesDebugLevel(t *testing.T) {
	logger, err := New("debug")
	if err != nil {
		t.Fatalf("New(debug): %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Errorf("debug logger should have debug level enabled")
	}
}

func TestNewInvalidLevel(t *testing.T) {
	if _, err := New("verbose"); err == nil {
		t.Fatal("New(verbose): want error, got nil")
	}
}
