package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"inventario/internal/config"
)

func TestNewHonoursLevel(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "warn", Encoding: "json"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info must be disabled at warn")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("error must be enabled at warn")
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New(config.LogConfig{Level: "info", Encoding: "xml"}); err == nil {
		t.Fatalf("expected encoding error")
	}
}
