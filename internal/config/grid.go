package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// GridConfig holds deployment specific grid settings.
type GridConfig struct {
	// Labels overrides built-in column labels. Keys are column names or the
	// shared keys "patientDetails", "formDate" and "formAge".
	Labels map[string]string `yaml:"labels"`
	// AgeRangeEncounterType is the encounter type the age category column
	// is computed from. Empty falls back to the first selected form's.
	AgeRangeEncounterType string `yaml:"ageRangeEncounterType"`
	// DefaultHiddenQuestions lists, per form uuid, the question ids whose
	// columns are created hidden.
	DefaultHiddenQuestions map[string][]string `yaml:"defaultHiddenQuestions"`
}

// DefaultGridConfig is used when no grid config file is present.
func DefaultGridConfig() *GridConfig {
	return &GridConfig{
		Labels:                 map[string]string{},
		DefaultHiddenQuestions: map[string][]string{},
	}
}

// LoadGridConfig reads a YAML grid config. An empty path or a missing file
// yields the defaults.
func LoadGridConfig(path string) (*GridConfig, error) {
	cfg := DefaultGridConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read grid config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse grid config %s: %w", path, err)
	}
	if cfg.Labels == nil {
		cfg.Labels = map[string]string{}
	}
	if cfg.DefaultHiddenQuestions == nil {
		cfg.DefaultHiddenQuestions = map[string][]string{}
	}
	return cfg, nil
}

// IsHiddenByDefault reports whether a question's column starts hidden.
func (g *GridConfig) IsHiddenByDefault(formUUID, questionID string) bool {
	for _, id := range g.DefaultHiddenQuestions[formUUID] {
		if id == questionID {
			return true
		}
	}
	return false
}
