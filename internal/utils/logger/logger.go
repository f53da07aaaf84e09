// Package logger provides the process-wide zap logger used by all packages.
package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.Mutex
	level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	root  *zap.SugaredLogger
)

// Logger returns the shared sugared logger, building it on first use.
// Listings go to stdout, so all log output is kept on stderr.
func Logger() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()

	if root == nil {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = level
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

		l, err := cfg.Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger setup failed, logging disabled: %v\n", err)
			l = zap.NewNop()
		}
		root = l.Sugar()
	}
	return root
}

// SetLevel adjusts the logging level for the shared logger. Accepts the
// usual zap level names (debug, info, warn, error).
func SetLevel(name string) error {
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}
