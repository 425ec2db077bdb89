package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/docker/go-units"

	"images_to_pdf/internal/converter"
)

const (
	EnvEmbedFormat      = "IMG2PDF_EMBED_FORMAT"
	EnvEmbedJPEGQuality = "IMG2PDF_EMBED_JPEG_QUALITY"
	EnvResampleFilter   = "IMG2PDF_RESAMPLE_FILTER"
	EnvVerifyOutput     = "IMG2PDF_VERIFY_OUTPUT"
	EnvMaxSourceSize    = "IMG2PDF_MAX_SOURCE_SIZE"
	EnvMaxPixels        = "IMG2PDF_MAX_PIXELS"
)

// ConversionConfig holds the pipeline settings.
type ConversionConfig struct {
	// EmbedFormat is how page pixels are stored in the PDF: "PNG" or "JPG".
	EmbedFormat      string `toml:"embed_format"`
	EmbedJPEGQuality int    `toml:"embed_jpeg_quality"`
	ResampleFilter   string `toml:"resample_filter"`
	VerifyOutput     *bool  `toml:"verify_output"`
	MaxSourceSize    string `toml:"max_source_size"`
	// MaxPixels caps width*height of a single source image.
	MaxPixels int64 `toml:"max_pixels"`

	maxSourceSizeVal int64
}

// Finalize applies defaults, loads environment overrides, and validates the conversion configuration.
func (c *ConversionConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.validate()
}

// Converter returns the equivalent converter configuration.
func (c *ConversionConfig) Converter() *converter.Config {
	cfg := converter.NewDefaultConfig()
	cfg.EmbedFormat = c.EmbedFormat
	cfg.EmbedJPEGQuality = c.EmbedJPEGQuality
	cfg.ResampleFilter = c.ResampleFilter
	if c.VerifyOutput != nil {
		cfg.VerifyOutput = *c.VerifyOutput
	}
	cfg.MaxSourceBytes = c.maxSourceSizeVal
	cfg.MaxPixels = c.MaxPixels
	return cfg
}

func (c *ConversionConfig) loadDefaults() {
	defaults := converter.NewDefaultConfig()
	if c.EmbedFormat == "" {
		c.EmbedFormat = defaults.EmbedFormat
	}
	if c.EmbedJPEGQuality == 0 {
		c.EmbedJPEGQuality = defaults.EmbedJPEGQuality
	}
	if c.ResampleFilter == "" {
		c.ResampleFilter = defaults.ResampleFilter
	}
	if c.VerifyOutput == nil {
		verify := defaults.VerifyOutput
		c.VerifyOutput = &verify
	}
	if c.MaxSourceSize == "" {
		c.MaxSourceSize = "64MB"
	}
	if c.MaxPixels == 0 {
		c.MaxPixels = defaults.MaxPixels
	}
}

func (c *ConversionConfig) loadEnv() error {
	if v := os.Getenv(EnvEmbedFormat); v != "" {
		c.EmbedFormat = v
	}
	if v := os.Getenv(EnvEmbedJPEGQuality); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvEmbedJPEGQuality, err)
		}
		c.EmbedJPEGQuality = q
	}
	if v := os.Getenv(EnvResampleFilter); v != "" {
		c.ResampleFilter = v
	}
	if v := os.Getenv(EnvVerifyOutput); v != "" {
		verify, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvVerifyOutput, err)
		}
		c.VerifyOutput = &verify
	}
	if v := os.Getenv(EnvMaxSourceSize); v != "" {
		c.MaxSourceSize = v
	}
	if v := os.Getenv(EnvMaxPixels); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxPixels, err)
		}
		c.MaxPixels = n
	}
	return nil
}

func (c *ConversionConfig) validate() error {
	size, err := units.FromHumanSize(c.MaxSourceSize)
	if err != nil {
		return fmt.Errorf("invalid max_source_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_source_size must be positive")
	}
	c.maxSourceSizeVal = size

	cfg := c.Converter()
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.EmbedFormat = cfg.EmbedFormat
	return nil
}
