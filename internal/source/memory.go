package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// UploadScheme is the scheme of handles issued by Memory.
const UploadScheme = "upload"

// Memory holds uploaded images for the lifetime of a single request and
// hands out upload:// handles for them.
type Memory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

// Put stores data and returns its handle.
func (m *Memory) Put(data []byte) string {
	handle := UploadScheme + "://" + uuid.NewString()
	m.mu.Lock()
	m.items[handle] = data
	m.mu.Unlock()
	return handle
}

// Len reports the number of stored uploads.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	m.mu.RLock()
	data, ok := m.items[ref]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
