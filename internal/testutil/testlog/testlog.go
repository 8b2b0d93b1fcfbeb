package testlog

import (
	"testing"

	"github.com/danmuck/qrtctl/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("start")
}

// Logger returns a debug logger tagged with the running test's name.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return log.Logger.With().Str("test", t.Name()).Logger().Level(zerolog.DebugLevel)
}
