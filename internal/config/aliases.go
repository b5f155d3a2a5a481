package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AliasConfig extends the built-in header and frequency alias tables.
//
// Example file:
//
//	columns:
//	  project: ["Site", "Job Name"]
//	  due_date: ["Target Date"]
//	frequencies:
//	  BIMONTHLY: M
type AliasConfig struct {
	Columns     map[string][]string `yaml:"columns"`
	Frequencies map[string]string   `yaml:"frequencies"`
}

// LoadAliases reads an alias table from a YAML file
func LoadAliases(path string) (AliasConfig, error) {
	var aliases AliasConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return aliases, fmt.Errorf("failed to read alias file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return aliases, fmt.Errorf("failed to parse alias file %s: %w", path, err)
	}
	return aliases, nil
}
