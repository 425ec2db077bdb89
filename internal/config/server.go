package config

import (
	"fmt"
	"os"
	"time"

	"github.com/docker/go-units"
)

const (
	EnvServerAddr          = "IMG2PDF_SERVER_ADDR"
	EnvServerMaxUploadSize = "IMG2PDF_MAX_UPLOAD_SIZE"
	EnvServerReadTimeout   = "IMG2PDF_READ_TIMEOUT"
	EnvServerWriteTimeout  = "IMG2PDF_WRITE_TIMEOUT"
)

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr          string `toml:"addr"`
	MaxUploadSize string `toml:"max_upload_size"`
	ReadTimeout   string `toml:"read_timeout"`
	WriteTimeout  string `toml:"write_timeout"`

	maxUploadSizeVal int64
	readTimeoutVal   time.Duration
	writeTimeoutVal  time.Duration
}

// MaxUploadSizeBytes returns the parsed upload limit.
func (c *ServerConfig) MaxUploadSizeBytes() int64 { return c.maxUploadSizeVal }

// ReadTimeoutDuration returns the parsed read timeout.
func (c *ServerConfig) ReadTimeoutDuration() time.Duration { return c.readTimeoutVal }

// WriteTimeoutDuration returns the parsed write timeout.
func (c *ServerConfig) WriteTimeoutDuration() time.Duration { return c.writeTimeoutVal }

// Finalize applies defaults, loads environment overrides, and validates the server configuration.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

func (c *ServerConfig) loadDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "100MB"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "1m"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "5m"
	}
}

func (c *ServerConfig) loadEnv() {
	if v := os.Getenv(EnvServerAddr); v != "" {
		c.Addr = v
	}
	if v := os.Getenv(EnvServerMaxUploadSize); v != "" {
		c.MaxUploadSize = v
	}
	if v := os.Getenv(EnvServerReadTimeout); v != "" {
		c.ReadTimeout = v
	}
	if v := os.Getenv(EnvServerWriteTimeout); v != "" {
		c.WriteTimeout = v
	}
}

func (c *ServerConfig) validate() error {
	size, err := units.FromHumanSize(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_upload_size must be positive")
	}
	c.maxUploadSizeVal = size

	if c.readTimeoutVal, err = time.ParseDuration(c.ReadTimeout); err != nil {
		return fmt.Errorf("invalid read_timeout: %w", err)
	}
	if c.writeTimeoutVal, err = time.ParseDuration(c.WriteTimeout); err != nil {
		return fmt.Errorf("invalid write_timeout: %w", err)
	}
	return nil
}
