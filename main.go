package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"       // for memory profiling
	"runtime/pprof" // for CPU and memory profiling
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"

	"images_to_pdf/api"
	"images_to_pdf/internal/config"
	"images_to_pdf/internal/converter"
	"images_to_pdf/internal/logger"
	"images_to_pdf/internal/sink"
	"images_to_pdf/internal/source"
)

// ErrNoSupportedFiles is returned when no supported image files are found in a directory.
var ErrNoSupportedFiles = errors.New("no supported image files found")

// ErrNoImages is returned when the command line names no images at all.
var ErrNoImages = errors.New("no images given: use -i <dir> and/or list image paths")

// ErrPartialBound is returned when only one of -max-width and -max-height is set.
var ErrPartialBound = errors.New("-max-width and -max-height must be given together")

type cliOptions struct {
	inputDir   string
	refs       []string
	outputFile string
	maxWidth   int
	maxHeight  int
	quality    float64
}

func main() {
	inputDir := flag.String("i", "", "Input directory containing image files (.webp, .jpg, .jpeg, .png, .gif, .bmp, .tiff)")
	outputFile := flag.String("o", "output.pdf", "Output PDF file name")
	maxWidth := flag.Int("max-width", 0, "Fit images into this width (requires -max-height)")
	maxHeight := flag.Int("max-height", 0, "Fit images into this height (requires -max-width)")
	quality := flag.Float64("quality", -1, "JPEG recompression quality between 0 and 1; unset keeps pixels as decoded")
	configPath := flag.String("config", "", "Path to a TOML configuration `file`")
	serveAddr := flag.String("serve", "", "Serve the HTTP API on `addr` instead of converting")
	cpuprofile := flag.String("cpuprofile", "", "Write cpu profile to `file`")
	memprofile := flag.String("memprofile", "", "Write memory profile to `file`")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("could not load .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("could not load configuration: %v", err)
	}
	if err := cfg.Finalize(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := logger.New(&cfg.Logging)

	// CPU Profiling
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatalf("could not create CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("could not start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
		logger.Info("CPU profiling enabled", "file", *cpuprofile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serveAddr != "" {
		cfg.Server.Addr = *serveAddr
		err = runServer(ctx, cfg, logger)
	} else {
		var path string
		path, err = runApp(ctx, cfg, logger, cliOptions{
			inputDir:   *inputDir,
			refs:       flag.Args(),
			outputFile: *outputFile,
			maxWidth:   *maxWidth,
			maxHeight:  *maxHeight,
			quality:    *quality,
		})
		if err == nil {
			fmt.Printf("✅ Successfully created '%s'\n", path)
		}
	}
	if err != nil {
		logger.Error("Failed", "error", err)
		stop()
		pprof.StopCPUProfile()
		os.Exit(1)
	}

	// Memory Profiling
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			log.Fatalf("could not create memory profile: %v", err)
		}
		defer f.Close()
		runtime.GC() // Get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatalf("could not write memory profile: %v", err)
		}
		logger.Info("Memory profile written", "file", *memprofile)
	}
}

// runApp converts the images named on the command line into a single PDF
// and returns its absolute path.
func runApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts cliOptions) (string, error) {
	req, err := buildRequest(opts)
	if err != nil {
		return "", err
	}
	logger.Info("Converting images", "count", len(req.ImagePaths), "output", opts.outputFile)

	sources, _, err := newSources(ctx, cfg, logger, "")
	if err != nil {
		return "", err
	}
	assembler, err := converter.NewAssembler(cfg.Conversion.Converter(), sources, logger)
	if err != nil {
		return "", err
	}

	dst := sink.File{Dir: filepath.Dir(opts.outputFile), Logger: logger}
	res, err := assembler.Assemble(ctx, req, dst)
	if err != nil {
		return "", fmt.Errorf("failed to convert images to PDF: %w", err)
	}
	logger.Info("Created PDF", "path", res.FilePath, "pages", res.Pages, "size", humanize.Bytes(uint64(res.Size)))
	return res.FilePath, nil
}

// buildRequest turns command line options into a conversion request.
// Directory images come first, in name order, followed by explicit refs.
func buildRequest(opts cliOptions) (*converter.ConversionRequest, error) {
	var refs []string
	if opts.inputDir != "" {
		files, err := findSupportedImageFiles(opts.inputDir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			refs = append(refs, filepath.Join(opts.inputDir, f))
		}
	}
	refs = append(refs, opts.refs...)
	if len(refs) == 0 {
		return nil, ErrNoImages
	}
	if (opts.maxWidth > 0) != (opts.maxHeight > 0) {
		return nil, ErrPartialBound
	}

	req := &converter.ConversionRequest{
		ImagePaths: refs,
		Name:       filepath.Base(opts.outputFile),
	}
	if opts.maxWidth > 0 || opts.maxHeight > 0 {
		req.MaxSize = &converter.MaxSize{Width: opts.maxWidth, Height: opts.maxHeight}
	}
	if opts.quality >= 0 {
		q := opts.quality
		req.Quality = &q
	}
	return req, nil
}

// findSupportedImageFiles scans a directory for supported image types and returns a sorted list of filenames.
func findSupportedImageFiles(inputDir string) ([]string, error) {
	files, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("could not read directory %s: %w", inputDir, err)
	}

	var imageFiles []string
	for _, file := range files {
		if !file.IsDir() && source.SupportedExtensions[strings.ToLower(filepath.Ext(file.Name()))] {
			imageFiles = append(imageFiles, file.Name())
		}
	}

	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("%w in directory %s", ErrNoSupportedFiles, inputDir)
	}

	sort.Strings(imageFiles)
	return imageFiles, nil
}

// newSources builds the resolver for the allowed schemes. A non-empty root
// confines plain paths and file:// handles to that directory. The minio
// client is returned when an object store is configured.
func newSources(ctx context.Context, cfg *config.Config, logger *slog.Logger, root string) (*source.Mux, *minio.Client, error) {
	var path source.Resolver
	if cfg.Sources.Allows("file") {
		path = source.File{Root: root}
	}
	mux := source.NewMux(path)

	if cfg.Sources.Allows("http") || cfg.Sources.Allows("https") {
		web := source.NewHTTP(cfg.Sources.HTTPTimeoutDuration(), logger)
		for _, scheme := range []string{"http", "https"} {
			if cfg.Sources.Allows(scheme) {
				mux.Handle(scheme, web)
			}
		}
	}

	if !cfg.Store.Enabled() {
		return mux, nil, nil
	}
	client, err := source.NewMinioClient(ctx, source.StoreOptions{
		Endpoint:  cfg.Store.Endpoint,
		AccessKey: cfg.Store.AccessKey,
		SecretKey: cfg.Store.SecretKey,
		Bucket:    cfg.Store.Bucket,
		Region:    cfg.Store.Region,
		Secure:    cfg.Store.IsSecure(),
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Sources.Allows(source.StoreScheme) {
		mux.Handle(source.StoreScheme, &source.Store{
			Getter: source.MinioGetter{Client: client},
			Logger: logger.With("component", "source.store"),
		})
	}
	return mux, client, nil
}

// sinkFactory returns the destination policy of the HTTP API.
func sinkFactory(cfg *config.Config, client *minio.Client, logger *slog.Logger) api.SinkFactory {
	files := api.FileSinks(cfg.Output.Dir, logger)
	return func(req *converter.ConversionRequest) (converter.Sink, error) {
		if cfg.Output.Sink == config.SinkStore {
			if client == nil {
				return nil, errors.New("object store is not configured")
			}
			return sink.Store{
				Client: client,
				Bucket: cfg.Store.Bucket,
				Prefix: cfg.Output.Prefix,
				Logger: logger,
			}, nil
		}
		return files(req)
	}
}

// runServer serves the HTTP API until ctx is canceled.
func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	sources, client, err := newSources(ctx, cfg, logger, cfg.Sources.Root)
	if err != nil {
		return err
	}
	handler, err := api.NewHandler(api.Options{
		Converter:     cfg.Conversion.Converter(),
		Sources:       sources,
		Sinks:         sinkFactory(cfg, client, logger.With("component", "sink")),
		MaxUploadSize: cfg.Server.MaxUploadSizeBytes(),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", srv.Addr, "sink", cfg.Output.Sink,
			"maxUpload", humanize.Bytes(uint64(cfg.Server.MaxUploadSizeBytes())))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
