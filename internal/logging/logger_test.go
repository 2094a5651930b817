package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		level   string
		enabled zapcore.Level
		off     zapcore.Level
	}{
		{"debug dev", "dev", "debug", zapcore.DebugLevel, zapcore.InvalidLevel},
		{"warn prod", "prod", "warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"default info", "", "", zapcore.InfoLevel, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.env, tt.level)
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			if !logger.Core().Enabled(tt.enabled) {
				t.Fatalf("expected %s to be enabled", tt.enabled)
			}
			if tt.off != zapcore.InvalidLevel && logger.Core().Enabled(tt.off) {
				t.Fatalf("expected %s to be disabled", tt.off)
			}
		})
	}
}
