package converter

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func init() {
	// Keep pdfcpu from creating a configuration directory in the user's home.
	api.DisableConfigDir()
}

// writeEmptyDocument writes a valid PDF whose page tree has no kids.
// gofpdf cannot produce one since it inserts a blank page into page-less documents.
func writeEmptyDocument(w io.Writer) error {
	ctx, err := pdfcpu.CreateContextWithXRefTable(model.NewDefaultConfiguration(), types.PaperSize["A4"])
	if err != nil {
		return fmt.Errorf("could not create empty document: %w", err)
	}
	if err := api.WriteContext(ctx, w); err != nil {
		return fmt.Errorf("could not write empty document: %w", err)
	}
	return nil
}

// PageCount returns the number of pages in a finalized document.
func PageCount(data []byte) (int, error) {
	return api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
}

// InspectPages parses a finalized document and returns the size of each page.
func InspectPages(data []byte) ([]PageSize, error) {
	dims, err := api.PageDims(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("could not read page dimensions: %w", err)
	}
	sizes := make([]PageSize, len(dims))
	for i, dim := range dims {
		sizes[i] = PageSize{Width: int(math.Round(dim.Width)), Height: int(math.Round(dim.Height))}
	}
	return sizes, nil
}

// verifyDocument checks that data contains exactly the expected pages.
func verifyDocument(data []byte, want []PageSize) error {
	if len(want) == 0 {
		n, err := PageCount(data)
		if err != nil {
			return fmt.Errorf("could not count pages: %w", err)
		}
		if n != 0 {
			return fmt.Errorf("document has %d pages, want none", n)
		}
		return nil
	}

	got, err := InspectPages(data)
	if err != nil {
		return err
	}
	if len(got) != len(want) {
		return fmt.Errorf("document has %d pages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("page %d is %dx%d, want %dx%d", i, got[i].Width, got[i].Height, want[i].Width, want[i].Height)
		}
	}
	return nil
}
