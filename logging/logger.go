// Package logging wraps zap with the configuration used across the library.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger.
type Logger struct {
	*zap.Logger
}

// Config holds logger configuration.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Development switches to a human-readable console encoding.
	Development bool
	// OutputPaths lists zap sink URLs; stderr when empty.
	OutputPaths []string
}

// New creates a logger from the given configuration.
func New(cfg Config) (*Logger, error) {
	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Development:      cfg.Development,
		Encoding:         "json",
		EncoderConfig:    encoderConfig(cfg.Development),
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	if len(zcfg.OutputPaths) == 0 {
		zcfg.OutputPaths = []string{"stderr"}
	}
	if cfg.Development {
		zcfg.Encoding = "console"
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return &Logger{logger}, nil
}

// NewDefault returns a production logger at info level.
func NewDefault() *Logger {
	logger, err := New(Config{Level: "info"})
	if err != nil {
		panic(err)
	}
	return logger
}

// NewDevelopment returns a console logger at debug level.
func NewDevelopment() *Logger {
	logger, err := New(Config{Level: "debug", Development: true})
	if err != nil {
		panic(err)
	}
	return logger
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap.NewNop()}
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{l.Logger.With(fields...)}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig(development bool) zapcore.EncoderConfig {
	if development {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}
