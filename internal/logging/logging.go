// Package logging builds fecbridge's zap logger: colored console
// output when stderr is a terminal, plain when it's redirected to a
// file or pipe.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Config is the logging subsystem's configuration.
type Config struct {
	// Level is the minimum level that reaches stderr.
	Level zapcore.Level `yaml:"level"`
}

// Init builds a SugaredLogger and the AtomicLevel backing it, so a
// caller (e.g. a future SIGHUP handler) can change verbosity at
// runtime without rebuilding the logger. component names the logger
// (e.g. "tx" or "rx"), so a combined fecbridge log stream can tell
// which half of the bridge emitted a given line.
func Init(cfg *Config, component string) (*zap.SugaredLogger, zap.AtomicLevel, error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()

	if term.IsTerminal(int(os.Stderr.Fd())) {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(cfg.Level),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("logging: failed to initialize logger: %w", err)
	}

	sugared := logger.Sugar()
	if component != "" {
		sugared = sugared.Named(component)
	}
	return sugared, config.Level, nil
}
