package config

import (
	"fmt"
	"os"

	"chain-observer/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream url cannot be empty")
	}
	if c.Upstream.RequestTimeout <= 0 {
		return fmt.Errorf("upstream timeout must be greater than 0")
	}

	if c.RateLimit.MaxPerMinute <= 0 {
		return fmt.Errorf("rate limit max_per_minute must be greater than 0")
	}
	if c.RateLimit.MinSpacingMs < 0 {
		return fmt.Errorf("rate limit min_spacing_ms cannot be negative")
	}

	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.RetentionDays <= 0 {
		return fmt.Errorf("retention days must be greater than 0")
	}

	// Stream overrides may only tune known fields; names are checked
	// against the catalogue at startup, not here.
	for i, s := range c.Streams {
		if s.Name == "" {
			return fmt.Errorf("stream override %d must have a name", i)
		}
		if s.IntervalMs < 0 || s.TTLMs < 0 {
			return fmt.Errorf("stream override '%s' has negative timing", s.Name)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
