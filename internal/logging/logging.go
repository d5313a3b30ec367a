// Package logging builds the zerolog logger used across pricebench.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "pricebench/internal/errors"
)

// Config selects the level and output format.
type Config struct {
	Level  string // trace, debug, info, warn, error; empty means info
	Format string // "console" (human) or "json"
}

// New returns a timestamped logger writing to w.
func New(cfg Config, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), apperrors.NewConfigError("log.level", "unknown level %q", cfg.Level)
		}
		level = l
	}

	switch strings.ToLower(cfg.Format) {
	case "", "console", "human":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	case "json":
	default:
		return zerolog.Nop(), apperrors.NewConfigError("log.format", "unknown format %q", cfg.Format)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
