package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	EnvOutputSink   = "IMG2PDF_OUTPUT_SINK"
	EnvOutputDir    = "IMG2PDF_OUTPUT_DIR"
	EnvOutputPrefix = "IMG2PDF_OUTPUT_PREFIX"

	EnvStoreEndpoint  = "IMG2PDF_S3_ENDPOINT"
	EnvStoreAccessKey = "IMG2PDF_S3_ACCESS_KEY"
	EnvStoreSecretKey = "IMG2PDF_S3_SECRET_KEY"
	EnvStoreBucket    = "IMG2PDF_S3_BUCKET"
	EnvStoreRegion    = "IMG2PDF_S3_REGION"
	EnvStoreSecure    = "IMG2PDF_S3_SECURE"

	EnvHTTPTimeout    = "IMG2PDF_HTTP_TIMEOUT"
	EnvAllowedSchemes = "IMG2PDF_ALLOWED_SCHEMES"
	EnvSourceRoot     = "IMG2PDF_SOURCE_ROOT"
)

// Output sinks.
const (
	SinkFile  = "file"
	SinkStore = "store"
)

// OutputConfig selects where server-side conversions are written.
type OutputConfig struct {
	Sink string `toml:"sink"`
	// Dir is used by the file sink when a request carries no target directory.
	Dir    string `toml:"dir"`
	Prefix string `toml:"prefix"`
}

// Finalize applies defaults, loads environment overrides, and validates the output configuration.
func (c *OutputConfig) Finalize() error {
	if c.Sink == "" {
		c.Sink = SinkFile
	}
	if c.Dir == "" {
		c.Dir = "."
	}
	if v := os.Getenv(EnvOutputSink); v != "" {
		c.Sink = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.Dir = v
	}
	if v := os.Getenv(EnvOutputPrefix); v != "" {
		c.Prefix = v
	}

	c.Sink = strings.ToLower(c.Sink)
	if c.Sink != SinkFile && c.Sink != SinkStore {
		return fmt.Errorf("invalid sink %q: must be %q or %q", c.Sink, SinkFile, SinkStore)
	}
	return nil
}

// StoreConfig describes the S3 compatible object store.
type StoreConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Secure    *bool  `toml:"secure"`
}

// Enabled reports whether an object store is configured.
func (c *StoreConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// IsSecure reports whether the store is reached over TLS.
func (c *StoreConfig) IsSecure() bool {
	return c.Secure == nil || *c.Secure
}

// Finalize loads environment overrides and validates the store configuration.
func (c *StoreConfig) Finalize() error {
	if v := os.Getenv(EnvStoreEndpoint); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv(EnvStoreAccessKey); v != "" {
		c.AccessKey = v
	}
	if v := os.Getenv(EnvStoreSecretKey); v != "" {
		c.SecretKey = v
	}
	if v := os.Getenv(EnvStoreBucket); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv(EnvStoreRegion); v != "" {
		c.Region = v
	}
	if v := os.Getenv(EnvStoreSecure); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvStoreSecure, err)
		}
		c.Secure = &secure
	}

	if c.Endpoint != "" && c.Bucket == "" {
		return fmt.Errorf("bucket required when endpoint is set")
	}
	return nil
}

// SourcesConfig controls how image references are resolved.
type SourcesConfig struct {
	HTTPTimeout    string   `toml:"http_timeout"`
	AllowedSchemes []string `toml:"allowed_schemes"`
	// Root is the only directory the HTTP API reads local images from.
	Root string `toml:"root"`

	httpTimeoutVal time.Duration
}

// HTTPTimeoutDuration returns the parsed timeout for remote images.
func (c *SourcesConfig) HTTPTimeoutDuration() time.Duration { return c.httpTimeoutVal }

// Allows reports whether handles with scheme may be resolved.
func (c *SourcesConfig) Allows(scheme string) bool {
	return slices.Contains(c.AllowedSchemes, strings.ToLower(scheme))
}

// Finalize applies defaults, loads environment overrides, and validates the sources configuration.
func (c *SourcesConfig) Finalize() error {
	if c.HTTPTimeout == "" {
		c.HTTPTimeout = "30s"
	}
	if len(c.AllowedSchemes) == 0 {
		c.AllowedSchemes = []string{"file", "http", "https", "s3"}
	}
	if c.Root == "" {
		c.Root = "."
	}
	if v := os.Getenv(EnvHTTPTimeout); v != "" {
		c.HTTPTimeout = v
	}
	if v := os.Getenv(EnvAllowedSchemes); v != "" {
		c.AllowedSchemes = strings.Split(v, ",")
	}
	if v := os.Getenv(EnvSourceRoot); v != "" {
		c.Root = v
	}
	for i, s := range c.AllowedSchemes {
		c.AllowedSchemes[i] = strings.ToLower(strings.TrimSpace(s))
	}

	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil {
		return fmt.Errorf("invalid http_timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("http_timeout must be positive")
	}
	c.httpTimeoutVal = d
	return nil
}
