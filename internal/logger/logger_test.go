package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"unknown", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, parseLevel(c.input), "input=%q", c.input)
	}
}

func TestNew_DoesNotPanic(t *testing.T) {
	log := New("pipeline", "debug")
	log.Infow("smoke_test", "ok", true)
	assert.NotNil(t, log)
}
