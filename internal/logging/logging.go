// Package logging builds the structured logger used across a run.
//
// Loggers are zap-backed and exposed as logr.Logger so packages depend only
// on the logr interface. Log records go to stderr by default, or to a
// size-rotated file when a path is configured.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for file logging.
const (
	MaxSizeMB  = 20
	MaxBackups = 5
	MaxAgeDays = 30
)

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string
	// File, when set, sends logs to a rotated file instead of stderr.
	File string
	// Console selects the human-readable encoder instead of JSON.
	Console bool
	// Writer overrides the destination. Used by tests.
	Writer io.Writer
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// New returns a logger and a function that flushes buffered records.
func New(opts Options) (logr.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return logr.Discard(), noop, err
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.Sampling = nil
	if opts.Console {
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	var sink zapcore.WriteSyncer
	var closer func() error
	switch {
	case opts.Writer != nil:
		sink = zapcore.AddSync(opts.Writer)
	case opts.File != "":
		if dir := filepath.Dir(opts.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return logr.Discard(), noop, fmt.Errorf("create log directory: %w", err)
			}
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    MaxSizeMB,
			MaxBackups: MaxBackups,
			MaxAge:     MaxAgeDays,
			Compress:   true,
		}
		sink = zapcore.AddSync(rotator)
		closer = rotator.Close
	default:
		zapLogger, err := zapConfig.Build()
		if err != nil {
			return logr.Discard(), noop, err
		}
		return zapr.NewLogger(zapLogger), syncer(zapLogger, nil), nil
	}

	encoder := zapcore.NewJSONEncoder(zapConfig.EncoderConfig)
	if opts.Console {
		encoder = zapcore.NewConsoleEncoder(zapConfig.EncoderConfig)
	}
	core := zapcore.NewCore(encoder, sink, zapConfig.Level)
	zapLogger := zap.New(core, zap.AddCaller())
	return zapr.NewLogger(zapLogger), syncer(zapLogger, closer), nil
}

func syncer(l *zap.Logger, closer func() error) func() error {
	return func() error {
		// Sync on stderr returns EINVAL on some platforms.
		_ = l.Sync()
		if closer != nil {
			return closer()
		}
		return nil
	}
}

func noop() error { return nil }
