package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestInitRejectsBadSettings(t *testing.T) {
	_, err := Init(Settings{Level: "loud"})
	require.Error(t, err)

	_, err = Init(Settings{Level: "info", Format: "xml"})
	require.Error(t, err)
}

func TestInitWritesJSONToFile(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)
	path := filepath.Join(t.TempDir(), "chatbot.log")

	logger, err := Init(Settings{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)
	logger.Debug().Str("component", "test").Msg("hello")
	logger.Trace().Msg("dropped")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"component":"test"`)
	require.Contains(t, string(data), `"message":"hello"`)
	require.NotContains(t, string(data), "dropped")
}
