// Package logger builds the structured logger used throughout the engine.
// It wraps zap's production configuration rather than inventing a bespoke
// logging format; go.uber.org/zap is the logging dependency for every
// package that takes a *zap.SugaredLogger.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.SugaredLogger tagged with the given service name.
// It uses zap's JSON production encoder with millisecond-resolution ISO8601
// timestamps, writing to stderr so operators can redirect it independently
// of normal output.
func New(service string) *zap.SugaredLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.TimeKey = "ts"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		zapcore.InfoLevel,
	)

	logger := zap.New(core, zap.AddCaller()).With(zap.String("service", service))
	return logger.Sugar()
}

// NewDevelopment builds a human-readable, debug-level logger for local
// development and tests, mirroring zap's own NewDevelopment defaults.
func NewDevelopment(service string) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	l, err := cfg.Build()
	if err != nil {
		// zap's development config is static and cannot fail to build; a
		// failure here indicates a corrupted build, not a runtime condition
		// worth propagating as an error return.
		panic(err)
	}
	return l.With(zap.String("service", service)).Sugar()
}

// Nop returns a logger that discards everything, for tests that don't care
// about log output.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
