package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smithers.json")

	write := func(model string) {
		data, err := json.Marshal(map[string]interface{}{
			"agent": map[string]interface{}{"model": model},
			"providers": []map[string]interface{}{
				{"name": "main", "provider": "anthropic", "api_key": "k"},
			},
		})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0600))
	}

	write("first-model")

	var mu sync.Mutex
	var latest *Config

	watcher, err := NewWatcher(NewLoader(path), func(cfg *Config) {
		mu.Lock()
		latest = cfg
		mu.Unlock()
	})
	require.NoError(t, err)
	defer watcher.Close()

	write("second-model")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return latest != nil && latest.Agent.Model == "second-model"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatcherKeepsOldConfigOnInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smithers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"providers":[{"name":"main","provider":"anthropic","api_key":"k"}]}`), 0600))

	var mu sync.Mutex
	calls := 0

	watcher, err := NewWatcher(NewLoader(path), func(cfg *Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)
	defer watcher.Close()

	// Invalid config must not reach the callback
	require.NoError(t, os.WriteFile(path, []byte(`{"providers":[]}`), 0600))

	time.Sleep(500 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, calls)
}
