package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeAppConfig(t *testing.T, path, dataDir, providerName string) {
	t.Helper()
	cfg := fmt.Sprintf(`{
  "providers": [
    {"name": %q, "provider": "anthropic", "api_key": "test-key", "priority": 0}
  ],
  "data_dir": %q,
  "logging": {"level": "error", "console": false}
}`, providerName, dataDir)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0600))
}

func hasProfile(a *app, name string) func() bool {
	return func() bool {
		for _, p := range a.runner.Profiles() {
			if p.Name == name {
				return true
			}
		}
		return false
	}
}

func TestBuildAppAppliesConfigEdits(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "smithers.json")
	writeAppConfig(t, configPath, filepath.Join(dir, "data"), "first")

	prevCfgFile, prevLogLevel := cfgFile, logLevel
	cfgFile, logLevel = configPath, ""
	t.Cleanup(func() { cfgFile, logLevel = prevCfgFile, prevLogLevel })

	a, err := buildApp()
	require.NoError(t, err)
	t.Cleanup(a.close)

	require.True(t, hasProfile(a, "first")())

	// Editing the file on disk updates the runner without a restart
	writeAppConfig(t, configPath, filepath.Join(dir, "data"), "second")
	require.Eventually(t, hasProfile(a, "second"), 5*time.Second, 50*time.Millisecond)
	require.False(t, hasProfile(a, "first")())
}
