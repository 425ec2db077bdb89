package converter

import (
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
)

// Embed formats for page images.
const (
	EmbedPNG = "PNG"
	EmbedJPG = "JPG"
)

// Config holds configuration for the conversion process.
type Config struct {
	EmbedFormat      string // "PNG" keeps pixels lossless inside the document, "JPG" trades fidelity for size
	EmbedJPEGQuality int    // used only with EmbedJPG
	ResampleFilter   string // nearest, linear, catmullrom or lanczos
	VerifyOutput     bool   // re-read the finalized document and check page count and sizes
	MaxSourceBytes   int64  // 0 means unlimited
	MaxPixels        int64  // width*height ceiling checked before decoding; 0 means unlimited
}

// NewDefaultConfig creates a new Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		EmbedFormat:      EmbedPNG,
		EmbedJPEGQuality: 95,
		ResampleFilter:   "lanczos",
		VerifyOutput:     true,
		MaxSourceBytes:   64 << 20,
		MaxPixels:        100_000_000,
	}
}

// Validate normalizes and checks the configuration.
func (c *Config) Validate() error {
	c.EmbedFormat = strings.ToUpper(c.EmbedFormat)
	switch c.EmbedFormat {
	case EmbedPNG:
	case EmbedJPG, "JPEG":
		c.EmbedFormat = EmbedJPG
		if c.EmbedJPEGQuality < 1 || c.EmbedJPEGQuality > 100 {
			return fmt.Errorf("embed jpeg quality must be between 1 and 100, got %d", c.EmbedJPEGQuality)
		}
	default:
		return fmt.Errorf("unsupported embed format %q", c.EmbedFormat)
	}
	if _, err := ParseResampleFilter(c.ResampleFilter); err != nil {
		return err
	}
	if c.MaxSourceBytes < 0 {
		return fmt.Errorf("max source bytes must not be negative")
	}
	if c.MaxPixels < 0 {
		return fmt.Errorf("max pixels must not be negative")
	}
	return nil
}

// ParseResampleFilter maps a filter name to its imaging filter.
func ParseResampleFilter(name string) (imaging.ResampleFilter, error) {
	switch strings.ToLower(name) {
	case "", "lanczos":
		return imaging.Lanczos, nil
	case "nearest":
		return imaging.NearestNeighbor, nil
	case "linear":
		return imaging.Linear, nil
	case "catmullrom":
		return imaging.CatmullRom, nil
	default:
		return imaging.ResampleFilter{}, fmt.Errorf("unknown resample filter %q", name)
	}
}
