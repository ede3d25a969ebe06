package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envRefRe matches ${VAR} and ${VAR:-default}.
var envRefRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} references with environment
// values. Unset variables without a default expand to "".
func ExpandEnv(data []byte) []byte {
	return envRefRe.ReplaceAllFunc(data, func(ref []byte) []byte {
		m := envRefRe.FindSubmatch(ref)
		if val, ok := os.LookupEnv(string(m[1])); ok && val != "" {
			return []byte(val)
		}
		return m[2]
	})
}

// LoadConfig reads, expands, validates and parses a YAML config file.
// Fields absent from the file keep their Default values.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	cfg.ConfigFile = filename
	return cfg, nil
}

// Parse expands environment references in data, validates it against the
// config schema and decodes it over Default.
func Parse(data []byte) (*Config, error) {
	data = ExpandEnv(data)

	if err := ValidateConfig(data); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadRecipe reads a standalone recipe YAML file.
func LoadRecipe(filename string) (*RecipeConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file: %w", err)
	}

	var recipe RecipeConfig
	if err := yaml.Unmarshal(data, &recipe); err != nil {
		return nil, fmt.Errorf("failed to parse recipe file: %w", err)
	}
	if recipe.Title == "" {
		return nil, &ValidationError{Field: "title", Message: "recipe title is required"}
	}
	return &recipe, nil
}
