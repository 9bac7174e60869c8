package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"certhub/internal/platform/config"
)

// New returns the process root logger writing to stdout.
func New(cfg config.Log) *zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter builds a logger on w. Format "console" produces human-readable
// lines; anything else emits JSON.
func NewWithWriter(cfg config.Log, w io.Writer) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	log := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "certhub").
		Logger()
	return &log
}

// Nop returns a disabled logger for tests and optional dependencies.
func Nop() *zerolog.Logger {
	log := zerolog.Nop()
	return &log
}
