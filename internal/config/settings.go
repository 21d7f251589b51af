package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the optional YAML policy file overlaid on the environment.
// It carries the knobs that change per repository rather than per deployment.
type Settings struct {
	TriggerPhrase   string   `yaml:"trigger_phrase,omitempty"`
	AssigneeTrigger string   `yaml:"assignee_trigger,omitempty"`
	LabelTrigger    string   `yaml:"label_trigger,omitempty"`
	Model           string   `yaml:"model,omitempty"`
	MaxTurns        int      `yaml:"max_turns,omitempty"`
	PermissionMode  string   `yaml:"permission_mode,omitempty"`
	AllowedTools    []string `yaml:"allowed_tools,omitempty"`
	DisallowedTools []string `yaml:"disallowed_tools,omitempty"`
}

// LoadSettings reads the settings file at path. An empty path or a missing
// file yields empty settings; a present but malformed file is a
// configuration error.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		return &Settings{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	return &s, nil
}

// Apply overlays non-empty settings values onto the environment's trigger
// configuration and returns the merged trigger config.
func (s *Settings) Apply(env *Env) {
	if s.TriggerPhrase != "" {
		env.TriggerPhrase = s.TriggerPhrase
	}
	if s.AssigneeTrigger != "" {
		env.AssigneeTrigger = s.AssigneeTrigger
	}
	if s.LabelTrigger != "" {
		env.LabelTrigger = s.LabelTrigger
	}
}
