package config

// Version constants for configuration files.
const (
	// SchemaVersion is the version string of the config schema.
	SchemaVersion = "v1"

	// EnvPrefix prefixes environment overrides, e.g. CULINARY_API_KEY.
	EnvPrefix = "CULINARY"
)
