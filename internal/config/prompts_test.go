package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrompts(t *testing.T) {
	t.Run("loads presets from yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompts.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
presets:
  default: You are a helpful assistant.
  reviewer: |
    You review pull requests.
    Be thorough.
`), 0600))

		presets, err := LoadPrompts(path)
		require.NoError(t, err)
		assert.Equal(t, "You are a helpful assistant.", presets.Get("default", "x"))
		assert.Contains(t, presets.Get("reviewer", "x"), "pull requests")
	})

	t.Run("missing file yields empty presets", func(t *testing.T) {
		presets, err := LoadPrompts(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "fallback", presets.Get("anything", "fallback"))
	})

	t.Run("empty path yields empty presets", func(t *testing.T) {
		presets, err := LoadPrompts("")
		require.NoError(t, err)
		assert.Empty(t, presets.Presets)
	})

	t.Run("malformed yaml errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("presets: [not a map"), 0600))
		_, err := LoadPrompts(path)
		assert.Error(t, err)
	})
}
