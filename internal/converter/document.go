package converter

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
)

// State is the lifecycle stage of a Document.
type State int

const (
	StateEmpty State = iota
	StateBuilding
	StateFinalized
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilding:
		return "building"
	case StateFinalized:
		return "finalized"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var errDocumentClosed = errors.New("document is no longer open")

// PageSize records the size, in points, of a composed page.
type PageSize struct {
	Width  int
	Height int
}

// Document is an append-only sequence of pages backed by gofpdf.
// It is finalized at most once and must be closed on every path.
type Document struct {
	pdf         *gofpdf.Fpdf
	embedFormat string
	jpegQuality int
	pages       []PageSize
	state       State
}

// NewDocument creates an empty document. Units are points, so one image
// pixel maps to one point.
func NewDocument(title string, cfg *Config) *Document {
	// Default page size, actual size set per page
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(title, true)
	pdf.SetCreator("images_to_pdf", true)

	return &Document{
		pdf:         pdf,
		embedFormat: cfg.EmbedFormat,
		jpegQuality: cfg.EmbedJPEGQuality,
		state:       StateEmpty,
	}
}

// State returns the current lifecycle stage.
func (d *Document) State() State { return d.state }

// Pages returns the sizes of the pages appended so far, in order.
func (d *Document) Pages() []PageSize {
	return append([]PageSize(nil), d.pages...)
}

// PageCount returns the number of appended pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Append adds p as the next page. No cropping, margins or scaling are applied.
func (d *Document) Append(p Page) error {
	if d.state != StateEmpty && d.state != StateBuilding {
		return errDocumentClosed
	}
	d.state = StateBuilding

	var buf bytes.Buffer
	imageType := d.embedFormat
	var err error
	if imageType == EmbedJPG {
		err = imaging.Encode(&buf, p.pixels, imaging.JPEG, imaging.JPEGQuality(d.jpegQuality))
	} else {
		imageType = EmbedPNG
		err = imaging.Encode(&buf, p.pixels, imaging.PNG)
	}
	if err != nil {
		return fmt.Errorf("could not encode page image to %s: %w", imageType, err)
	}

	widthPt, heightPt := float64(p.Width), float64(p.Height)
	imageName := fmt.Sprintf("page%d", len(d.pages))
	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: false}

	d.pdf.AddPageFormat("P", gofpdf.SizeType{Wd: widthPt, Ht: heightPt})
	d.pdf.RegisterImageOptionsReader(imageName, opts, &buf)
	d.pdf.ImageOptions(imageName, 0, 0, widthPt, heightPt, false, opts, 0, "")
	if d.pdf.Err() {
		return fmt.Errorf("could not place image on page %d: %w", len(d.pages), d.pdf.Error())
	}

	d.pages = append(d.pages, PageSize{Width: p.Width, Height: p.Height})
	return nil
}

// Finalize serializes the document. It can succeed only once.
func (d *Document) Finalize() ([]byte, error) {
	if d.state != StateEmpty && d.state != StateBuilding {
		return nil, errDocumentClosed
	}

	var buf bytes.Buffer
	if len(d.pages) == 0 {
		if err := writeEmptyDocument(&buf); err != nil {
			return nil, err
		}
	} else if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("could not write PDF structure: %w", err)
	}

	d.state = StateFinalized
	return buf.Bytes(), nil
}

// Close releases the PDF builder and its registered images. A document closed
// before Finalize ends up aborted. Close is idempotent.
func (d *Document) Close() {
	if d.state != StateFinalized {
		d.state = StateAborted
	}
	d.pdf = nil
}
