package converter

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Transformer applies resize, recompression and rotation, in that order.
// Rotation runs last so the page matches the final buffer; it does not
// re-check the bound.
type Transformer struct {
	MaxWidth  int
	MaxHeight int
	Quality   int // 0-100, values outside (0,100) disable recompression
	Filter    imaging.ResampleFilter
}

// Apply returns the transformed image with its rotation applied. Stages
// that are no-ops pass the buffer through unchanged.
func (t Transformer) Apply(img *DecodedImage) (*DecodedImage, error) {
	pixels := Resize(img.Pixels, t.MaxWidth, t.MaxHeight, t.Filter)

	pixels, err := Recompress(pixels, t.Quality)
	if err != nil {
		return nil, err
	}

	pixels = Rotate(pixels, img.Rotation)
	return &DecodedImage{Pixels: pixels, Rotation: 0}, nil
}

// FitBound computes the target size for an image of width x height that
// exceeds maxWidth x maxHeight. Height is fitted first from the width bound.
func FitBound(width, height, maxWidth, maxHeight int) (int, int) {
	aspectRatio := float64(height) / float64(width)

	h := maxHeight
	if candidate := int(math.Round(float64(maxWidth) * aspectRatio)); candidate < maxHeight {
		h = candidate
	}
	w := int(math.Round(float64(h) / aspectRatio))

	// Rounding the width back from a rounded height can overshoot by a pixel
	// on wide images.
	w = min(max(w, 1), maxWidth)
	h = max(h, 1)
	return w, h
}

// Resize scales img down to fit the bound, preserving aspect ratio.
// It returns img itself when either bound is zero or img already fits.
func Resize(img *image.NRGBA, maxWidth, maxHeight int, filter imaging.ResampleFilter) *image.NRGBA {
	if maxWidth <= 0 || maxHeight <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= maxWidth && b.Dy() <= maxHeight {
		return img
	}
	w, h := FitBound(b.Dx(), b.Dy(), maxWidth, maxHeight)
	return imaging.Resize(img, w, h, filter)
}

// Recompress pushes img through a JPEG encode/decode round trip at quality.
// Only fidelity changes, dimensions are kept. Quality <= 0 or >= 100 is a no-op.
func Recompress(img *image.NRGBA, quality int) (*image.NRGBA, error) {
	if quality <= 0 || quality >= 100 {
		return img, nil
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("could not encode jpeg at quality %d: %w", quality, err)
	}
	decoded, err := imaging.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("could not decode recompressed jpeg: %w", err)
	}
	return toNRGBA(decoded), nil
}

// Rotate turns img clockwise by degrees. Right angles are exact pixel
// permutations; 90 and 270 swap width and height. Zero returns img itself.
func Rotate(img *image.NRGBA, degrees int) *image.NRGBA {
	switch ((degrees % 360) + 360) % 360 {
	case 0:
		return img
	case 90:
		// imaging rotates counter-clockwise.
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	default:
		return imaging.Rotate(img, float64(-degrees), color.Transparent)
	}
}
