package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the configuration file, falling back to defaults when it
// does not exist. SMITHERS_-prefixed environment variables override
// file values.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to determine config path")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		applyDerivedDefaults(cfg)
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("SMITHERS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDerivedDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyDerivedDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DataDir = filepath.Join(home, ".smithers")
		}
	}
	if cfg.Logging.File == "" && cfg.DataDir != "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "smithers.log")
	}
}

// applyEnvOverrides maps conventional API key variables onto provider
// profiles so a bare environment works without a config file.
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && !hasProvider(cfg, "anthropic") {
		cfg.Providers = append(cfg.Providers, ProviderConfig{
			Name:     "anthropic-env",
			Provider: "anthropic",
			APIKey:   key,
			Priority: len(cfg.Providers),
		})
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && !hasProvider(cfg, "openai") {
		cfg.Providers = append(cfg.Providers, ProviderConfig{
			Name:     "openai-env",
			Provider: "openai",
			APIKey:   key,
			Priority: len(cfg.Providers),
		})
	}
}

func hasProvider(cfg *Config, provider string) bool {
	for _, p := range cfg.Providers {
		if p.Provider == provider {
			return true
		}
	}
	return false
}

// Save writes the configuration to the config file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to determine config path")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("providers", cfg.Providers)
	v.Set("agent", cfg.Agent)
	v.Set("tools", cfg.Tools)
	v.Set("schedules", cfg.Schedules)
	v.Set("logging", cfg.Logging)
	v.Set("metrics", cfg.Metrics)
	v.Set("tracing", cfg.Tracing)
	v.Set("data_dir", cfg.DataDir)
	v.Set("prompts_file", cfg.PromptsFile)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	return nil
}

// GetConfigPath returns the effective config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".smithers", "smithers.json")
}

// Load is a convenience function that creates a loader and loads
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
