// Package sink persists finalized documents.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"images_to_pdf/internal/converter"
)

var (
	// ErrNoDirectory is returned when a File sink has no usable target directory.
	ErrNoDirectory = errors.New("target directory is not available")
	// ErrOutsideDir is returned by ConfineDir for targets that leave the base directory.
	ErrOutsideDir = errors.New("target directory is outside the output directory")
)

// ConfineDir resolves a requested target directory against base. An empty
// target selects base itself; relative targets are taken from base. The
// result must be base or lie below it.
func ConfineDir(base, target string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("could not resolve output directory: %w", err)
	}
	if target == "" {
		return absBase, nil
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(absBase, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(absBase, target)
	if err != nil || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDir, target)
	}
	return target, nil
}

// File writes documents into Dir and reports their absolute path.
type File struct {
	Dir    string
	Logger *slog.Logger
}

// Write stores data as Dir/name. The document appears under its final name
// only once it has been written completely.
func (f File) Write(ctx context.Context, name string, data []byte) (converter.Result, error) {
	if err := ctx.Err(); err != nil {
		return converter.Result{}, err
	}
	if f.Dir == "" {
		return converter.Result{}, ErrNoDirectory
	}
	info, err := os.Stat(f.Dir)
	if err != nil {
		return converter.Result{}, fmt.Errorf("%w: %w", ErrNoDirectory, err)
	}
	if !info.IsDir() {
		return converter.Result{}, fmt.Errorf("%w: %s is not a directory", ErrNoDirectory, f.Dir)
	}

	target, err := filepath.Abs(filepath.Join(f.Dir, name))
	if err != nil {
		return converter.Result{}, fmt.Errorf("could not resolve output path: %w", err)
	}

	tmp, err := os.CreateTemp(f.Dir, "."+name+"-*.tmp")
	if err != nil {
		return converter.Result{}, fmt.Errorf("could not create output file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return converter.Result{}, fmt.Errorf("could not write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return converter.Result{}, fmt.Errorf("could not close output file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return converter.Result{}, fmt.Errorf("could not move output file into place: %w", err)
	}

	if f.Logger != nil {
		f.Logger.Info("Wrote PDF", "path", target, "size", humanize.Bytes(uint64(len(data))))
	}
	return converter.Result{FilePath: target, Status: converter.StatusSuccess}, nil
}

// Writer streams documents to W.
type Writer struct {
	W io.Writer
}

func (w Writer) Write(ctx context.Context, name string, data []byte) (converter.Result, error) {
	if err := ctx.Err(); err != nil {
		return converter.Result{}, err
	}
	if _, err := w.W.Write(data); err != nil {
		return converter.Result{}, fmt.Errorf("could not stream %s: %w", name, err)
	}
	return converter.Result{Status: converter.StatusSuccess}, nil
}
