package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNopDiscardsEveryLevel(t *testing.T) {
	var log Logger = NewNop()
	// Must not panic on a nil fields map or any level.
	log.Debug("debug", nil)
	log.Info("info", map[string]any{"k": "v"})
	log.Warn("warn", nil)
	log.Error("error", nil)
}

func TestZerologLoggerEmitsMessageAndFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	log := NewZerologLogger(base)

	log.Info("pruner.budget", map[string]any{"maxTokens": 1000, "effectiveMax": 950})

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid JSON log line, got error: %v (line: %s)", err, buf.String())
	}
	if decoded["message"] != "pruner.budget" {
		t.Errorf("message field = %v, want %q", decoded["message"], "pruner.budget")
	}
	if decoded["maxTokens"] != float64(1000) {
		t.Errorf("maxTokens field = %v, want 1000", decoded["maxTokens"])
	}
}

func TestZerologLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf).Level(zerolog.DebugLevel)
	log := NewZerologLogger(base)

	log.Debug("d", nil)
	log.Warn("w", nil)
	log.Error("e", nil)

	if buf.Len() == 0 {
		t.Fatal("expected log output across all three levels")
	}
}
