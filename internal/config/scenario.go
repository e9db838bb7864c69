package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadScenario reads a YAML scenario file and applies its values onto cfg.
// Fields absent from the file keep their current values. Unknown keys are
// rejected so typos fail loudly instead of silently running the wrong setup.
func LoadScenario(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading scenario %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	return nil
}

// SaveScenario writes the config as a YAML scenario file, so a run can be
// reproduced from its exact configuration.
func SaveScenario(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding scenario: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing scenario %s: %w", path, err)
	}
	return nil
}
