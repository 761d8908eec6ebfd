// Package logger provides structured, level-gated logging for the gateway,
// built on go.uber.org/zap. It keeps the teacher proxy's module/action
// vocabulary — every call site names a module ("PIPELINE", "ADAPTER") and
// an action ("request_forward", "upstream_connect") — but expresses it as
// zap fields instead of fixed-width text columns, so log lines are
// structured JSON in production and human-readable in development.
//
// Usage:
//
//	log := logger.New("pipeline", cfg.LogLevel)
//	log.Infow("request_forward", "provider", req.Provider, "request_id", req.ID)
//	log.Errorw("upstream_connect", "error", err, "provider", provider)
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a *zap.SugaredLogger scoped to module, gated at levelStr.
// Unrecognized level strings default to "info". Output is a
// production JSON encoder in non-debug builds and a human-readable
// console encoder at debug level, matching zap's own convention.
func New(module, levelStr string) *zap.SugaredLogger {
	level := parseLevel(levelStr)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if level == zapcore.DebugLevel {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level)
	base := zap.New(core)
	return base.Sugar().Named(strings.ToLower(module))
}

// Named returns a child logger scoped to a sub-module, e.g.
// log.Named("injection_scanner").
func Named(l *zap.SugaredLogger, module string) *zap.SugaredLogger {
	return l.Named(strings.ToLower(module))
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
