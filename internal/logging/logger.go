package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"splice/internal/config"
)

// Options control logger construction independent of the config file.
type Options struct {
	Format           string
	Level            string
	OutputPaths      []string
	ErrorOutputPaths []string
}

// New constructs a zap logger from the provided options. Unknown levels fall
// back to info rather than failing; unknown formats fall back to console.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level))); err == nil {
		level = parsed
	}

	outputs := opts.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	errOutputs := opts.ErrorOutputPaths
	if len(errOutputs) == 0 {
		errOutputs = []string{"stderr"}
	}

	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Encoding:          "console",
		EncoderConfig:     consoleEncoderConfig(),
		OutputPaths:       outputs,
		ErrorOutputPaths:  errOutputs,
		DisableStacktrace: true,
		DisableCaller:     level != zapcore.DebugLevel,
	}
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		cfg.Encoding = "json"
		cfg.EncoderConfig = jsonEncoderConfig()
		cfg.DisableCaller = false
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// NewFromConfig builds the daemon's root logger, writing to stderr plus the
// configured log file.
func NewFromConfig(cfg *config.Config) (*zap.Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging: nil config")
	}
	logPath := cfg.LogFilePath()
	if dir := filepath.Dir(logPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log dir: %w", err)
		}
	}
	return New(Options{
		Format:           cfg.Logging.Format,
		Level:            cfg.Logging.Level,
		OutputPaths:      []string{"stderr", logPath},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// NewNop returns a logger that discards everything. Useful for tests and
// optional dependencies.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// NewComponentLogger tags the supplied logger with a component field so every
// record identifies its origin.
func NewComponentLogger(base *zap.Logger, component string) *zap.Logger {
	if base == nil {
		return NewNop()
	}
	if component = strings.TrimSpace(component); component == "" {
		return base
	}
	return base.With(zap.String(FieldComponent, component))
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return cfg
}
