// Package telemetry wraps zap with the calm, stable emoji-per-level
// convention spec §7 asks for, and a helper to abbreviate identifiers
// (pool addresses, token mints) so logs never need the full value.
package telemetry

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger at the given level ("debug", "info", "warn",
// "error"). Output is console-encoded for local operator readability,
// matching the teacher's plain-text log lines but with real levels.
func New(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(level)); err == nil {
		// parsed fine, lvl already set
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = emojiLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(os.Stdout),
		lvl,
	)
	return zap.New(core), nil
}

// emojiLevelEncoder renders a stable emoji prefix per level instead of the
// default bracketed level name, per spec §7's "stable emoji prefix per
// level (a calm set, not an ornament)".
func emojiLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch l {
	case zapcore.DebugLevel:
		enc.AppendString("🪲 debug")
	case zapcore.InfoLevel:
		enc.AppendString("ℹ️  info")
	case zapcore.WarnLevel:
		enc.AppendString("⚠️  warn")
	case zapcore.ErrorLevel:
		enc.AppendString("🛑 error")
	case zapcore.FatalLevel, zapcore.DPanicLevel, zapcore.PanicLevel:
		enc.AppendString("💀 fatal")
	default:
		enc.AppendString(l.String())
	}
}

// Short abbreviates a pool address or token identifier to its first 8
// characters for readability in logs, per spec §7 — never the full value,
// never secret material (this package never receives key material).
func Short(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
