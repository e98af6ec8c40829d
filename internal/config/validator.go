package config

import (
	"fmt"
)

var knownProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
}

var knownLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true,
}

// Validate checks a configuration for problems that would break a run
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if len(cfg.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured (or set ANTHROPIC_API_KEY / OPENAI_API_KEY)")
	}

	seen := map[string]bool{}
	for i, p := range cfg.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d has no name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name: %s", p.Name)
		}
		seen[p.Name] = true

		if !knownProviders[p.Provider] {
			return fmt.Errorf("provider %s has unknown type %q", p.Name, p.Provider)
		}
		if p.APIKey == "" {
			return fmt.Errorf("provider %s has no API key", p.Name)
		}
	}

	if cfg.Agent.Model == "" {
		return fmt.Errorf("agent model cannot be empty")
	}
	if cfg.Agent.Temperature < 0 || cfg.Agent.Temperature > 1 {
		return fmt.Errorf("agent temperature must be between 0 and 1")
	}
	if cfg.Agent.MaxTurns < 0 {
		return fmt.Errorf("agent max turns cannot be negative")
	}
	if cfg.Agent.MaxRetries < 0 {
		return fmt.Errorf("agent max retries cannot be negative")
	}

	if cfg.Logging.Level != "" && !knownLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("unknown log level: %s", cfg.Logging.Level)
	}

	scheduleNames := map[string]bool{}
	for i, s := range cfg.Schedules {
		if s.Name == "" {
			return fmt.Errorf("schedule %d has no name", i)
		}
		if scheduleNames[s.Name] {
			return fmt.Errorf("duplicate schedule name: %s", s.Name)
		}
		scheduleNames[s.Name] = true

		if s.Schedule == "" {
			return fmt.Errorf("schedule %s has no cron expression", s.Name)
		}
		if s.Prompt == "" {
			return fmt.Errorf("schedule %s has no prompt", s.Name)
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return fmt.Errorf("metrics enabled but no listen address set")
	}

	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be between 0 and 1")
	}

	return nil
}
