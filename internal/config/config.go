// Package config provides application configuration loaded from an optional
// TOML file with IMG2PDF_* environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const (
	// DefaultConfigFile is read when present and no explicit path is given.
	DefaultConfigFile = "images_to_pdf.toml"

	// EnvConfigFile names the configuration file to load.
	EnvConfigFile = "IMG2PDF_CONFIG"
)

// Config represents the root application configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Conversion ConversionConfig `toml:"conversion"`
	Output     OutputConfig     `toml:"output"`
	Store      StoreConfig      `toml:"store"`
	Sources    SourcesConfig    `toml:"sources"`
	Logging    LoggingConfig    `toml:"logging"`
}

// Load reads the configuration file at path. An empty path falls back to
// $IMG2PDF_CONFIG and then DefaultConfigFile; a missing default file yields
// an empty configuration. The result still needs Finalize.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv(EnvConfigFile)
		explicit = path != ""
	}
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML configuration data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Finalize applies defaults, loads environment overrides, and validates the configuration.
func (c *Config) Finalize() error {
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Conversion.Finalize(); err != nil {
		return fmt.Errorf("conversion: %w", err)
	}
	if err := c.Output.Finalize(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if err := c.Store.Finalize(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Sources.Finalize(); err != nil {
		return fmt.Errorf("sources: %w", err)
	}
	if err := c.Logging.Finalize(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Output.Sink == SinkStore && !c.Store.Enabled() {
		return errors.New("output: sink \"store\" requires [store] endpoint and bucket")
	}
	return nil
}
