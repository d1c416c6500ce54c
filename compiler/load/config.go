// Package load reads project configuration and schema documents from
// disk. Schema documents are YAML files whose mapping order is
// preserved, since field declaration order drives diffing and
// generated output.
package load

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the conventional project configuration name.
const DefaultConfigFile = "icetype.yaml"

// Config is the project configuration read from icetype.yaml.
type Config struct {
	// Schemas lists the schema files or directories to load.
	Schemas StringList `yaml:"schemas,omitempty"`

	// Dialect selects the target database dialect.
	Dialect string `yaml:"dialect,omitempty"`

	// MigrationsDir is where generated migration files are written.
	MigrationsDir string `yaml:"migrations,omitempty"`

	// Gen configures Go model generation.
	Gen GenConfig `yaml:"gen,omitempty"`
}

// GenConfig configures generated model output.
type GenConfig struct {
	// Dir is the output directory for generated files.
	Dir string `yaml:"dir,omitempty"`

	// Package is the package name of the generated files. Defaults to
	// the base name of Dir.
	Package string `yaml:"package,omitempty"`
}

// StringList is a YAML value that accepts either one string or a list
// of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("icetype/load: expected string or list, got yaml kind %d", node.Kind)
	}
}

// LoadConfig reads and decodes a project configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("icetype/load: read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("icetype/load: parse config %s: %w", path, err)
	}
	if len(cfg.Schemas) == 0 {
		cfg.Schemas = StringList{"schemas"}
	}
	if cfg.Dialect == "" {
		cfg.Dialect = "postgres"
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = "migrations"
	}
	return cfg, nil
}
