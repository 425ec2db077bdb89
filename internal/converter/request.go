package converter

import (
	"fmt"
	"math"
	"strings"
)

// MaxSize is the optional resize bound of a request.
type MaxSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ConversionRequest is the already parsed bridge request.
type ConversionRequest struct {
	ImagePaths []string `json:"imagePaths"`
	Name       string   `json:"name"`
	TargetPath string   `json:"targetPathRN,omitempty"`
	MaxSize    *MaxSize `json:"maxSize,omitempty"`
	Quality    *float64 `json:"quality,omitempty"`
}

// Validate checks the request shape. An empty image list is accepted and
// produces a document without pages.
func (r *ConversionRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if strings.ContainsAny(r.Name, `/\`) || r.Name == "." || r.Name == ".." {
		return fmt.Errorf("%w: name must not contain path separators", ErrInvalidRequest)
	}
	for i, ref := range r.ImagePaths {
		if strings.TrimSpace(ref) == "" {
			return fmt.Errorf("%w: imagePaths[%d] is empty", ErrInvalidRequest, i)
		}
	}
	if r.MaxSize != nil && (r.MaxSize.Width < 0 || r.MaxSize.Height < 0) {
		return fmt.Errorf("%w: maxSize must not be negative", ErrInvalidRequest)
	}
	if r.Quality != nil && (math.IsNaN(*r.Quality) || *r.Quality < 0 || *r.Quality > 1) {
		return fmt.Errorf("%w: quality must be between 0 and 1", ErrInvalidRequest)
	}
	return nil
}

// Bound returns the resize bound. Both values are zero when no bound applies.
func (r *ConversionRequest) Bound() (maxWidth, maxHeight int) {
	if r.MaxSize == nil || r.MaxSize.Width == 0 || r.MaxSize.Height == 0 {
		return 0, 0
	}
	return r.MaxSize.Width, r.MaxSize.Height
}

// QualityPercent maps the 0.0-1.0 quality factor to the 0-100 scale.
// An absent quality maps to 0, which disables recompression.
func (r *ConversionRequest) QualityPercent() int {
	if r.Quality == nil {
		return 0
	}
	return int(math.Round(100 * *r.Quality))
}
