package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process-wide logger. Development runs log a
// human-readable console stream at debug level; everything else emits JSON at
// info so the generation worker and API share one machine-parseable format.
func NewLogger(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	out := io.Writer(os.Stdout)
	if appEnv == "development" {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Logger aliases zerolog.Logger so the rest of the module depends on the
// logging contract through infra rather than importing the third-party
// package everywhere.
type Logger = zerolog.Logger
