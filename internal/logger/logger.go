package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger emits structured JSON entries keyed by a short action name, with a
// fixed service field per instance.
type Logger struct {
	z       *zap.Logger
	service string
}

func New(service string) *Logger { return NewWithLevel(service, "info") }

func NewWithLevel(service, level string) *Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	z, err := cfg.Build()
	if err != nil {
		// zap only fails on a bad sink; stdout never is.
		z = zap.NewNop()
	}
	return &Logger{z: z, service: service}
}

// Named returns a logger for a sub-component sharing the same core.
func (l *Logger) Named(service string) *Logger {
	return &Logger{z: l.z, service: service}
}

func (l *Logger) fields(extra map[string]any) []zap.Field {
	fs := make([]zap.Field, 0, len(extra)+1)
	fs = append(fs, zap.String("service", l.service))
	for k, v := range extra {
		fs = append(fs, zap.Any(k, v))
	}
	return fs
}

func (l *Logger) Info(action string, fields map[string]any) {
	l.z.Info(action, l.fields(fields)...)
}

func (l *Logger) Debug(action string, fields map[string]any) {
	l.z.Debug(action, l.fields(fields)...)
}

func (l *Logger) Error(action string, err error, fields map[string]any) {
	fs := l.fields(fields)
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	l.z.Error(action, fs...)
}

func (l *Logger) Sync() { _ = l.z.Sync() }
