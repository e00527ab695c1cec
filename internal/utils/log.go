// Package utils
package utils

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logger zerolog.Logger
	once   sync.Once
)

// ConfigureLogger sets the process-wide logger. Only the first call takes
// effect; later calls and GetLogger share the same instance.
func ConfigureLogger(level string, json bool) zerolog.Logger {
	once.Do(func() {
		lv, err := zerolog.ParseLevel(level)
		if err != nil {
			lv = zerolog.InfoLevel
		}

		var out io.Writer = os.Stdout
		if !json {
			out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		}
		logger = zerolog.New(out).Level(lv).With().Timestamp().Logger()
	})
	return logger
}

// GetLogger returns the shared logger, configuring the defaults if nothing
// did so yet.
func GetLogger() zerolog.Logger {
	return ConfigureLogger("info", false)
}
