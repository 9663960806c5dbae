package testutil

import (
	"io"
	"os"
	"testing"

	"github.com/rs/zerolog"
)

// LogEnv names the environment variable that routes test logs to t.Log.
const LogEnv = "DWARFDUMP_TEST_LOG"

// NewTestLogger returns a logger for t. Output is discarded unless LogEnv is
// set, in which case every level down to trace goes to t.Log.
func NewTestLogger(t testing.TB) zerolog.Logger {
	if os.Getenv(LogEnv) == "" {
		return zerolog.New(io.Discard)
	}
	return zerolog.New(zerolog.NewTestWriter(t)).
		Level(zerolog.TraceLevel).
		With().Timestamp().Str("test", t.Name()).
		Logger()
}
