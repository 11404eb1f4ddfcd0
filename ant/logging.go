package ant

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log = zerolog.New(os.Stderr).
		With().
		Timestamp().
		Str("component", "ant").
		Logger()
}

// SetLogger replaces the package-level logger, letting an application route
// ant's structured log events into its own sink/format.
func SetLogger(l zerolog.Logger) {
	log = l
}

// SetLevel sets the minimum level ant's logger emits at ("debug", "info",
// "warn", "error", or anything else for "info").
func SetLevel(level string) {
	var zerologLevel zerolog.Level
	switch level {
	case "debug":
		zerologLevel = zerolog.DebugLevel
	case "info":
		zerologLevel = zerolog.InfoLevel
	case "warn", "warning":
		zerologLevel = zerolog.WarnLevel
	case "error":
		zerologLevel = zerolog.ErrorLevel
	default:
		zerologLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(zerologLevel)
}
