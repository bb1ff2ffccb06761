package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]zapcore.Level{
		"":           zapcore.InfoLevel,
		LevelTerse:   zapcore.InfoLevel,
		LevelVerbose: zapcore.DebugLevel,
		LevelQuiet:   zapcore.WarnLevel,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if got != want {
			t.Fatalf("%q: want %v got %v", name, want, got)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewHonoursLevel(t *testing.T) {
	t.Parallel()

	logger, err := New(LevelQuiet)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("quiet must suppress info")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("quiet must keep warnings")
	}

	if _, err := New("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
