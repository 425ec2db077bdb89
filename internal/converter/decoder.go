package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

var (
	// ErrSourceTooLarge is returned when a source exceeds Config.MaxSourceBytes.
	ErrSourceTooLarge = errors.New("image source exceeds size limit")
	// ErrTooManyPixels is returned when an image header declares more than
	// Config.MaxPixels pixels.
	ErrTooManyPixels = errors.New("image dimensions exceed pixel limit")
)

// Resolver turns an image reference (a filesystem path or an opaque handle
// such as "s3://bucket/key") into a readable stream.
type Resolver interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// DecodedImage is a normalized pixel buffer plus the rotation read from
// its metadata. Pixels is always 8-bit NRGBA with its origin at (0,0).
type DecodedImage struct {
	Pixels   *image.NRGBA
	Rotation int
}

// Width returns the pixel width.
func (d *DecodedImage) Width() int { return d.Pixels.Bounds().Dx() }

// Height returns the pixel height.
func (d *DecodedImage) Height() int { return d.Pixels.Bounds().Dy() }

// Decoder loads image sources through a Resolver and decodes them.
type Decoder struct {
	resolver  Resolver
	maxBytes  int64
	maxPixels int64
}

// NewDecoder creates a Decoder. maxBytes <= 0 disables the size limit and
// maxPixels <= 0 the pixel limit.
func NewDecoder(resolver Resolver, maxBytes, maxPixels int64) *Decoder {
	return &Decoder{resolver: resolver, maxBytes: maxBytes, maxPixels: maxPixels}
}

// Load resolves ref and reads the whole source into memory.
func (d *Decoder) Load(ctx context.Context, ref string) ([]byte, error) {
	rc, err := d.resolver.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("could not open source: %w", err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if d.maxBytes > 0 {
		r = io.LimitReader(rc, d.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read source: %w", err)
	}
	if d.maxBytes > 0 && int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrSourceTooLarge, d.maxBytes)
	}
	return data, nil
}

// Decode checks the declared dimensions of data against the pixel limit
// before any pixel buffer is allocated, then decodes it.
func (d *Decoder) Decode(data []byte) (*image.NRGBA, error) {
	if d.maxPixels > 0 {
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("could not read image header: %w", err)
		}
		if int64(cfg.Width)*int64(cfg.Height) > d.maxPixels {
			return nil, fmt.Errorf("%w: %s is %dx%d, limit %d", ErrTooManyPixels, format, cfg.Width, cfg.Height, d.maxPixels)
		}
	}
	return DecodePixels(data)
}

// DecodePixels decodes an encoded image into an NRGBA buffer, whatever the
// source bit depth, palette or alpha layout. EXIF orientation is not applied.
func DecodePixels(data []byte) (*image.NRGBA, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("could not decode image: empty bounds %v", b)
	}
	return toNRGBA(img), nil
}

// toNRGBA returns img as an NRGBA buffer with a zero origin, cloning when
// the layout differs.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	// imaging.Clone converts every stdlib image type, including 16-bit ones, to 8-bit NRGBA.
	return imaging.Clone(img)
}
