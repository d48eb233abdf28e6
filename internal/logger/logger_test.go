package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "platform.log")

	l, err := New(Config{Level: "debug", File: logFile})
	require.NoError(t, err)
	defer l.Close()

	zl := l.Zerolog()
	zl.Info().Str("component", "test").Msg("hello")

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"message":"hello"`)
	assert.Contains(t, string(content), `"component":"test"`)
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "platform.log")

	l, err := New(Config{Level: "chatty", File: logFile})
	require.NoError(t, err)
	defer l.Close()

	zl := l.Zerolog()
	zl.Debug().Msg("dropped")
	zl.Info().Msg("kept")

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "dropped")
	assert.Contains(t, string(content), "kept")
}
