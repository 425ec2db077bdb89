// Package converter turns an ordered list of images into a PDF document
// with one page per image, each page sized to its image.
//
// Every image is read, oriented from its EXIF metadata, decoded to NRGBA,
// resized to the requested bound, optionally recompressed through JPEG,
// rotated upright and drawn at the origin of its own page. Images are
// processed strictly one after another and the first failure aborts the
// whole request.
package converter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/disintegration/imaging"
)

// StatusSuccess is the opaque success token returned by sinks that do not
// expose a file path.
const StatusSuccess = "success"

// Result describes a persisted document. FilePath is set by filesystem sinks,
// Location by sinks that return an opaque handle such as "s3://bucket/key".
type Result struct {
	FilePath string `json:"filePath,omitempty"`
	Location string `json:"location,omitempty"`
	Status   string `json:"status"`
	Pages    int    `json:"pages"`
	Size     int64  `json:"size"`
}

// Sink persists a finalized document under name.
type Sink interface {
	Write(ctx context.Context, name string, data []byte) (Result, error)
}

// Output is a finalized document that has not been persisted yet.
type Output struct {
	Data  []byte
	Pages []PageSize
}

// Assembler runs conversion requests.
type Assembler struct {
	cfg      *Config
	decoder  *Decoder
	filter   imaging.ResampleFilter
	observer Observer
	logger   *slog.Logger
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithObserver replaces the default log observer.
func WithObserver(o Observer) Option {
	return func(a *Assembler) {
		if o == nil {
			o = nopObserver{}
		}
		a.observer = o
	}
}

// NewAssembler creates an Assembler reading sources through resolver.
func NewAssembler(cfg *Config, resolver Resolver, logger *slog.Logger, opts ...Option) (*Assembler, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	// Validate normalizes in place; the caller's Config may be shared.
	own := *cfg
	cfg = &own
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid converter config: %w", err)
	}
	filter, err := ParseResampleFilter(cfg.ResampleFilter)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "converter")

	a := &Assembler{
		cfg:      cfg,
		decoder:  NewDecoder(resolver, cfg.MaxSourceBytes, cfg.MaxPixels),
		filter:   filter,
		observer: LogObserver{Logger: logger},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Assemble builds the document for req and hands it to sink. Nothing is
// written to the sink unless every image was processed.
func (a *Assembler) Assemble(ctx context.Context, req *ConversionRequest, sink Sink) (Result, error) {
	out, err := a.Build(ctx, req)
	if err != nil {
		return Result{}, err
	}

	res, err := sink.Write(ctx, req.Name, out.Data)
	if err != nil {
		a.logger.Error("Failed to write document", "name", req.Name, "error", err)
		return Result{}, newError(CodeDestination, -1, req.Name, err)
	}
	res.Pages = len(out.Pages)
	res.Size = int64(len(out.Data))
	if res.Status == "" {
		res.Status = StatusSuccess
	}

	a.logger.Info("PDF conversion completed", "name", req.Name, "pages", res.Pages, "size", res.Size)
	return res, nil
}

// Build runs the pipeline for req and returns the finalized document bytes.
// The in-progress document is released on every path.
func (a *Assembler) Build(ctx context.Context, req *ConversionRequest) (*Output, error) {
	if err := req.Validate(); err != nil {
		return nil, newError(CodeInvalidRequest, -1, req.Name, err)
	}

	maxWidth, maxHeight := req.Bound()
	t := Transformer{
		MaxWidth:  maxWidth,
		MaxHeight: maxHeight,
		Quality:   req.QualityPercent(),
		Filter:    a.filter,
	}
	a.logger.Debug("Starting PDF conversion", "name", req.Name, "images", len(req.ImagePaths),
		"maxWidth", maxWidth, "maxHeight", maxHeight, "quality", t.Quality)

	doc := NewDocument(req.Name, a.cfg)
	defer doc.Close()

	for idx, ref := range req.ImagePaths {
		img, err := a.processImage(ctx, idx, ref, t)
		if err != nil {
			a.logger.Warn("Aborting conversion", "index", idx, "ref", ref, "error", err)
			return nil, err
		}

		page := ComposePage(img)
		if err := doc.Append(page); err != nil {
			return nil, newError(CodeCompose, idx, ref, err)
		}
		a.observer.PageAdded(idx, ref, page.Width, page.Height)
	}

	data, err := doc.Finalize()
	if err != nil {
		return nil, newError(CodeFinalize, -1, req.Name, err)
	}
	pages := doc.Pages()
	a.logger.Debug("Finalized document", "name", req.Name, "pages", doc.PageCount(), "size", len(data))

	if a.cfg.VerifyOutput {
		if err := verifyDocument(data, pages); err != nil {
			return nil, newError(CodeFinalize, -1, req.Name, err)
		}
	}

	return &Output{Data: data, Pages: pages}, nil
}

// processImage reads, orients, decodes and transforms a single source.
func (a *Assembler) processImage(ctx context.Context, idx int, ref string, t Transformer) (*DecodedImage, error) {
	a.logger.Debug("Processing image", "index", idx, "ref", ref)

	data, err := a.decoder.Load(ctx, ref)
	if err != nil {
		return nil, newError(CodeDecode, idx, ref, err)
	}

	rotation, err := ReadRotation(data)
	if err != nil {
		a.observer.OrientationUnreadable(idx, ref, err)
		rotation = 0
	}

	pixels, err := a.decoder.Decode(data)
	if err != nil {
		return nil, newError(CodeDecode, idx, ref, err)
	}

	img, err := t.Apply(&DecodedImage{Pixels: pixels, Rotation: rotation})
	if err != nil {
		return nil, newError(CodeRecompress, idx, ref, err)
	}

	a.logger.Debug("Transformed image", "index", idx, "rotation", rotation,
		"srcWidth", pixels.Bounds().Dx(), "srcHeight", pixels.Bounds().Dy(),
		"width", img.Width(), "height", img.Height())
	return img, nil
}
