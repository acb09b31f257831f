// Package logging holds the process-wide zap logger shared by the indexer
// CLI and the archive API server.
//
// The text format is meant for the CLI and writes to stderr, leaving stdout
// free for documents the render command may pipe. The json format writes to
// stdout for log shippers, optionally through the Scalyr encoder.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/castarchive/castarchive/pkg/config"
)

// Logger is the application logger. It is nil until InitLogger or GetLogger runs.
var Logger *zap.Logger

// InitLogger replaces Logger according to cfg. An unknown level falls back to info.
func InitLogger(cfg *config.LoggingConfig) error {
	level := parseLevel(cfg.Level)
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}

	if cfg.Format != "text" && cfg.ScalyrFormat {
		Logger = zap.New(zapcore.NewCore(NewScalyrEncoder(scalyrEncoderConfig()), zapcore.AddSync(os.Stdout), level), opts...)
		return nil
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.Format == "text" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.OutputPaths = []string{"stderr"}
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		return err
	}
	Logger = logger
	return nil
}

func parseLevel(s string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func scalyrEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.LowercaseLevelEncoder
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	return ec
}

// GetLogger returns the global logger. Code running before InitLogger, such as
// package tests, gets a production logger created on first use.
func GetLogger() *zap.Logger {
	if Logger == nil {
		Logger, _ = zap.NewProduction()
	}
	return Logger
}

// WithComponent returns the global logger tagged with a component name
func WithComponent(component string) *zap.Logger {
	return GetLogger().With(zap.String("component", component))
}

// OrNop returns logger, or a no-op logger when it is nil. Library functions
// that take an optional logger use it so callers can pass nil to stay silent.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
