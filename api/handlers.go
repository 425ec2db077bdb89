// Package api exposes the converter over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"images_to_pdf/internal/converter"
	"images_to_pdf/internal/sink"
	"images_to_pdf/internal/source"
)

const (
	defaultMaxMemory  = 32 << 20 // 32 MB for multipart form parsing
	defaultUploadName = "converted.pdf"
)

// APIErrorResponse is the body of every failed request.
type APIErrorResponse struct {
	Error   string         `json:"error"`
	Code    converter.Code `json:"code,omitempty"`
	Details interface{}    `json:"details,omitempty"`
}

// SinkFactory picks the destination of a JSON conversion request.
type SinkFactory func(req *converter.ConversionRequest) (converter.Sink, error)

// FileSinks writes documents below dir. A request's target path selects a
// directory under dir and is refused when it points anywhere else.
func FileSinks(dir string, logger *slog.Logger) SinkFactory {
	return func(req *converter.ConversionRequest) (converter.Sink, error) {
		target, err := sink.ConfineDir(dir, req.TargetPath)
		if err != nil {
			return nil, err
		}
		return sink.File{Dir: target, Logger: logger}, nil
	}
}

// Options configures a Handler.
type Options struct {
	Converter *converter.Config
	// Sources resolves the references of JSON requests. Remote schemes it
	// serves are also available to uploads through image_urls.
	Sources       *source.Mux
	Sinks         SinkFactory
	MaxUploadSize int64
	Logger        *slog.Logger
}

// Handler serves conversion requests.
type Handler struct {
	cfg           *converter.Config
	sources       *source.Mux
	sinks         SinkFactory
	assembler     *converter.Assembler
	maxUploadSize int64
	logger        *slog.Logger
}

// NewHandler creates a Handler from opts.
func NewHandler(opts Options) (*Handler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Sources == nil {
		return nil, errors.New("api: a source resolver is required")
	}
	if opts.Sinks == nil {
		return nil, errors.New("api: a sink factory is required")
	}
	cfg := opts.Converter
	if cfg == nil {
		cfg = converter.NewDefaultConfig()
	}

	assembler, err := converter.NewAssembler(cfg, opts.Sources, logger)
	if err != nil {
		return nil, err
	}
	return &Handler{
		cfg:           cfg,
		sources:       opts.Sources,
		sinks:         opts.Sinks,
		assembler:     assembler,
		maxUploadSize: opts.MaxUploadSize,
		logger:        logger.With("component", "api"),
	}, nil
}

func writeJSON(w http.ResponseWriter, v interface{}, statusCode int) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, code converter.Code, details interface{}, statusCode int) {
	errResponse := APIErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	}
	if err := writeJSON(w, errResponse, statusCode); err != nil {
		h.logger.Error("Failed to write JSON error response", "error", err)
	}
}

// MapHTTPStatus maps a conversion failure to an HTTP status code.
func MapHTTPStatus(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch converter.CodeOf(err) {
	case converter.CodeInvalidRequest:
		return http.StatusBadRequest
	case converter.CodeDecode, converter.CodeRecompress:
		return http.StatusUnprocessableEntity
	case converter.CodeDestination:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeConversionError(w http.ResponseWriter, err error) {
	var details interface{}
	var convErr *converter.ConversionError
	if errors.As(err, &convErr) && convErr.Index >= 0 {
		details = map[string]interface{}{"index": convErr.Index, "ref": convErr.Ref}
	}
	h.writeJSONError(w, err.Error(), converter.CodeOf(err), details, MapHTTPStatus(err))
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// HandleConvert runs a JSON ConversionRequest and writes the document to the
// configured sink.
func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	var req converter.ConversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to parse conversion request", "error", err)
		h.writeJSONError(w, "Invalid request JSON", converter.CodeInvalidRequest, err.Error(), http.StatusBadRequest)
		return
	}

	dst, err := h.sinks(&req)
	if err != nil {
		if errors.Is(err, sink.ErrOutsideDir) {
			h.logger.Warn("Refused target path", "targetPath", req.TargetPath)
			h.writeJSONError(w, "Target path not allowed", converter.CodeInvalidRequest, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeJSONError(w, "No destination available", converter.CodeDestination, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.assembler.Assemble(ctx, &req, dst)
	if err != nil {
		h.logger.Error("PDF conversion failed", "name", req.Name, "error", err)
		h.writeConversionError(w, err)
		return
	}

	if err := writeJSON(w, res, http.StatusOK); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}

// uploadOptions is the optional "options" form field of an upload.
type uploadOptions struct {
	Name    string             `json:"name"`
	MaxSize *converter.MaxSize `json:"maxSize,omitempty"`
	Quality *float64           `json:"quality,omitempty"`
}

// HandleUpload converts the multipart "images" files, followed by any
// "image_urls", and responds with the PDF itself.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	defer func() {
		if r.Body != nil {
			io.Copy(io.Discard, r.Body)
			r.Body.Close()
		}
	}()

	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			h.writeJSONError(w, "Upload too large", converter.CodeInvalidRequest,
				fmt.Sprintf("limit is %s", humanize.Bytes(uint64(h.maxUploadSize))), http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Warn("Failed to parse multipart form", "error", err)
		h.writeJSONError(w, "Failed to parse request data", converter.CodeInvalidRequest, err.Error(), http.StatusBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	opts := uploadOptions{Name: defaultUploadName}
	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			h.writeJSONError(w, "Invalid 'options' JSON", converter.CodeInvalidRequest, err.Error(), http.StatusBadRequest)
			return
		}
		if opts.Name == "" {
			opts.Name = defaultUploadName
		}
	}

	uploads := source.NewMemory()
	req := &converter.ConversionRequest{Name: opts.Name, MaxSize: opts.MaxSize, Quality: opts.Quality}

	for _, fileHeader := range r.MultipartForm.File["images"] {
		h.logger.Debug("Processing uploaded file", "filename", fileHeader.Filename, "size", fileHeader.Size)
		file, err := fileHeader.Open()
		if err != nil {
			h.writeJSONError(w, fmt.Sprintf("Failed to open uploaded file: %s", fileHeader.Filename),
				converter.CodeInvalidRequest, err.Error(), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			h.writeJSONError(w, fmt.Sprintf("Failed to read uploaded file: %s", fileHeader.Filename),
				converter.CodeInvalidRequest, err.Error(), http.StatusBadRequest)
			return
		}
		req.ImagePaths = append(req.ImagePaths, uploads.Put(data))
	}

	if raw := r.FormValue("image_urls"); raw != "" {
		var urls []string
		if err := json.Unmarshal([]byte(raw), &urls); err != nil {
			h.writeJSONError(w, "Invalid 'image_urls' JSON", converter.CodeInvalidRequest, err.Error(), http.StatusBadRequest)
			return
		}
		req.ImagePaths = append(req.ImagePaths, urls...)
	}

	if len(req.ImagePaths) == 0 {
		h.writeJSONError(w, "No images provided", converter.CodeInvalidRequest,
			"Please upload files or provide image URLs.", http.StatusBadRequest)
		return
	}

	resolver := source.NewMux(nil).Handle(source.UploadScheme, uploads)
	for _, scheme := range []string{"http", "https"} {
		resolver.Handle(scheme, h.sources)
	}
	assembler, err := converter.NewAssembler(h.cfg, resolver, h.logger)
	if err != nil {
		h.writeJSONError(w, "Converter unavailable", "", err.Error(), http.StatusInternalServerError)
		return
	}

	h.logger.Info("Starting PDF conversion", "images", len(req.ImagePaths), "uploads", uploads.Len(), "name", req.Name)
	out, err := assembler.Build(ctx, req)
	if err != nil {
		h.logger.Error("PDF conversion failed", "error", err)
		h.writeConversionError(w, err)
		return
	}

	w.Header().Set("Content-Type", sink.ContentTypePDF)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, downloadName(req.Name)))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))

	if _, err := (sink.Writer{W: w}).Write(ctx, req.Name, out.Data); err != nil {
		// Headers are already sent.
		h.logger.Error("Failed to write PDF to response", "error", err)
		return
	}
	h.logger.Info("Successfully generated PDF", "filename", req.Name, "pages", len(out.Pages),
		"size", humanize.Bytes(uint64(len(out.Data))))
}

func downloadName(name string) string {
	name = strings.ReplaceAll(name, "\"", "")
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
