package logger

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"xetra/internal/config"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// New builds the process logger from the [log] section. An unknown level
// falls back to info and is reported on the returned logger.
func New(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	out := w
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	log := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()

	if err != nil {
		log.Warn().Str("level", cfg.Level).Msg("invalid log level, defaulting to info")
	}
	return log
}
