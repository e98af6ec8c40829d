package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptPresets maps preset names to system prompts, loaded from a
// YAML file so prompts can be edited without touching the main config.
type PromptPresets struct {
	Presets map[string]string `yaml:"presets"`
}

// LoadPrompts reads prompt presets from a YAML file. A missing path
// yields an empty preset set, not an error.
func LoadPrompts(path string) (*PromptPresets, error) {
	if path == "" {
		return &PromptPresets{Presets: map[string]string{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PromptPresets{Presets: map[string]string{}}, nil
		}
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var presets PromptPresets
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file: %w", err)
	}
	if presets.Presets == nil {
		presets.Presets = map[string]string{}
	}

	return &presets, nil
}

// Get returns the named preset, or the fallback when absent
func (p *PromptPresets) Get(name, fallback string) string {
	if prompt, ok := p.Presets[name]; ok && prompt != "" {
		return prompt
	}
	return fallback
}
