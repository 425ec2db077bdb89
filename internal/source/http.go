package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HTTP fetches images over http and https.
type HTTP struct {
	Client *http.Client
	Logger *slog.Logger
}

// NewHTTP creates an HTTP resolver whose requests time out after timeout.
func NewHTTP(timeout time.Duration, logger *slog.Logger) *HTTP {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HTTP{
		Client: &http.Client{Timeout: timeout},
		Logger: logger.With("component", "source.http"),
	}
}

// Open downloads imageURL. The response body is returned unread; the caller
// closes it.
func (h *HTTP) Open(ctx context.Context, imageURL string) (io.ReadCloser, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger.Debug("Fetching image from URL", "url", imageURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", imageURL, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("Failed to fetch image from URL", "url", imageURL, "error", err)
		return nil, fmt.Errorf("failed to fetch %s: %w", imageURL, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, imageURL)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		logger.Warn("Failed to fetch image, non-OK status", "url", imageURL, "status", resp.StatusCode)
		return nil, fmt.Errorf("failed to fetch %s: status %s", imageURL, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		resp.Body.Close()
		logger.Warn("Unsupported content type from URL", "url", imageURL, "contentType", contentType)
		return nil, fmt.Errorf("%w: %s from %s", ErrUnsupportedContentType, contentType, imageURL)
	}

	return resp.Body, nil
}
