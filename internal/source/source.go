// Package source resolves image references to readable streams.
//
// A reference is either a plain filesystem path or an opaque handle whose
// scheme selects the backing store: file://, http(s)://, s3://bucket/key
// or upload://id. Mux dispatches on the scheme and satisfies
// converter.Resolver.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

var (
	// ErrUnknownScheme is returned for handles whose scheme has no resolver.
	ErrUnknownScheme = errors.New("no resolver registered for scheme")
	// ErrNotFound is returned when a handle does not name an existing source.
	ErrNotFound = errors.New("source not found")
	// ErrUnsupportedContentType is returned when a remote source is not an image.
	ErrUnsupportedContentType = errors.New("unsupported content type from URL")
)

// Resolver opens a single kind of reference.
type Resolver interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// Mux routes references to resolvers by scheme. References without a
// scheme go to the path resolver.
type Mux struct {
	path    Resolver
	schemes map[string]Resolver
}

// NewMux creates a Mux whose plain paths and file:// handles are opened by path.
func NewMux(path Resolver) *Mux {
	m := &Mux{path: path, schemes: make(map[string]Resolver)}
	if path != nil {
		m.schemes["file"] = fileHandle{path}
	}
	return m
}

// Handle registers r for scheme, replacing any previous registration.
func (m *Mux) Handle(scheme string, r Resolver) *Mux {
	m.schemes[strings.ToLower(scheme)] = r
	return m
}

// Open resolves ref.
func (m *Mux) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	scheme, ok := Scheme(ref)
	if !ok {
		if m.path == nil {
			return nil, fmt.Errorf("%w: path %s", ErrUnknownScheme, ref)
		}
		return m.path.Open(ctx, ref)
	}
	r, ok := m.schemes[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScheme, scheme)
	}
	return r.Open(ctx, ref)
}

// Scheme returns the lowercased scheme of an opaque handle. Plain paths,
// including Windows drive paths, report false.
func Scheme(ref string) (string, bool) {
	i := strings.Index(ref, "://")
	if i <= 1 {
		return "", false
	}
	scheme := ref[:i]
	for _, c := range scheme {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.') {
			return "", false
		}
	}
	return strings.ToLower(scheme), true
}

type fileHandle struct {
	path Resolver
}

func (f fileHandle) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid file handle %s: %w", ref, err)
	}
	return f.path.Open(ctx, u.Path)
}
