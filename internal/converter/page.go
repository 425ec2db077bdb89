package converter

import "image"

// Page is one document page holding a single image drawn at (0,0).
// Its size in points equals the image size in pixels.
type Page struct {
	Width  int
	Height int
	pixels *image.NRGBA
}

// ComposePage wraps a transformed image into a page sized to it.
// The image is referenced, never modified.
func ComposePage(img *DecodedImage) Page {
	return Page{
		Width:  img.Width(),
		Height: img.Height(),
		pixels: img.Pixels,
	}
}
