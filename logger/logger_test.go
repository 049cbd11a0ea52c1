package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("writes json lines to a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "petrosql.log")

		log, err := New(Config{Level: "debug", Format: "json", OutputFile: path})
		require.NoError(t, err)
		log.Debug("query finished")
		require.NoError(t, log.Sync())

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
		assert.Equal(t, "DEBUG", entry["level"])
		assert.Equal(t, "query finished", entry["msg"])
		assert.Equal(t, "petrosql", entry["service"])
	})

	t.Run("unknown levels fall back to info", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "petrosql.log")

		log, err := New(Config{Level: "chatty", OutputFile: path})
		require.NoError(t, err)
		log.Debug("hidden")
		log.Info("shown")
		require.NoError(t, log.Sync())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "hidden")
		assert.Contains(t, string(data), "shown")
	})

	t.Run("fails on an unwritable path", func(t *testing.T) {
		_, err := New(Config{OutputFile: filepath.Join(t.TempDir(), "missing", "x.log")})
		assert.Error(t, err)
	})
}
