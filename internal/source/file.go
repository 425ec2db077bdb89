package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for paths that leave File.Root.
var ErrOutsideRoot = errors.New("path escapes source root")

// File opens plain filesystem paths. When Root is set, only relative paths
// that stay below Root are opened, symlinks included.
type File struct {
	Root string
}

func (f File) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	path := ref
	var file *os.File
	var err error
	if f.Root != "" {
		if !filepath.IsLocal(ref) {
			return nil, fmt.Errorf("%w: %s", ErrOutsideRoot, ref)
		}
		path = filepath.Join(f.Root, ref)
		file, err = os.OpenInRoot(f.Root, ref)
	} else {
		file, err = os.Open(path)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("could not open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("could not stat file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return file, nil
}

// SupportedExtensions lists the file extensions the decoder understands.
var SupportedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// GetContentTypeFromFilename determines the content type from a file extension.
// It returns "" for unsupported extensions.
func GetContentTypeFromFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return ""
	}
}
