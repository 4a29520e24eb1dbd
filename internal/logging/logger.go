// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the encoder and output of a logger.
//   - Development: human-readable console encoding at debug level.
//   - File: log destination. Empty means stderr. The TUI always passes a file
//     because stdout/stderr belong to the terminal renderer.
type Config struct {
	Development bool
	File        string
}

// New builds a zap.Logger configured for development or production.
func New(c Config) (*zap.Logger, error) {
	output := "stderr"
	if c.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		output = c.File
	}

	var cfg zap.Config
	if c.Development {
		cfg = zap.NewDevelopmentConfig()
		if c.File == "" {
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.OutputPaths = []string{output}
	cfg.ErrorOutputPaths = []string{output}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// DefaultFile returns the default TUI log path:
// $XDG_STATE_HOME/tutorbar/tutorbar.log or ~/.local/state/tutorbar/tutorbar.log.
func DefaultFile() (string, error) {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "tutorbar", "tutorbar.log"), nil
}
