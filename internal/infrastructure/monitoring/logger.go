// Package monitoring provides the observability backends: zap logging,
// Prometheus metrics and OpenTelemetry tracing.
package monitoring

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wardenauth/warden/internal/config"
	"github.com/wardenauth/warden/pkg/logger"
)

type zapLogger struct {
	base *zap.Logger
}

// NewLogger builds the production logger from configuration.
// Format "console" yields human-readable output for development;
// anything else yields JSON.
func NewLogger(cfg config.LogConfig) (logger.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	base, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &zapLogger{base: base}, nil
}

func (l *zapLogger) Debug(_ context.Context, message string, fields ...logger.Field) {
	l.base.Debug(message, toZap(fields)...)
}

func (l *zapLogger) Info(_ context.Context, message string, fields ...logger.Field) {
	l.base.Info(message, toZap(fields)...)
}

func (l *zapLogger) Warn(_ context.Context, message string, fields ...logger.Field) {
	l.base.Warn(message, toZap(fields)...)
}

func (l *zapLogger) Error(_ context.Context, message string, err error, fields ...logger.Field) {
	l.base.Error(message, append(toZap(fields), zap.Error(err))...)
}

func (l *zapLogger) Fatal(_ context.Context, message string, err error, fields ...logger.Field) {
	l.base.Fatal(message, append(toZap(fields), zap.Error(err))...)
}

func (l *zapLogger) WithFields(fields ...logger.Field) logger.Logger {
	return &zapLogger{base: l.base.With(toZap(fields)...)}
}

func (l *zapLogger) WithComponent(component string) logger.Logger {
	return &zapLogger{base: l.base.With(zap.String("component", component))}
}

func toZap(fields []logger.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
