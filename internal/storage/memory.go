package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStorage keeps files in process memory.
type MemoryStorage struct {
	mu      sync.RWMutex
	files   map[string]memoryFile
	baseURL string
}

type memoryFile struct {
	data        []byte
	contentType string
}

func NewMemoryStorage(baseURL string) *MemoryStorage {
	if baseURL == "" {
		baseURL = "/files"
	}
	return &MemoryStorage{files: make(map[string]memoryFile), baseURL: baseURL}
}

func (m *MemoryStorage) Save(_ context.Context, key string, r io.Reader, contentType string) (string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	m.mu.Lock()
	m.files[k] = memoryFile{data: data, contentType: contentType}
	m.mu.Unlock()
	return m.PublicURL(k), nil
}

func (m *MemoryStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	f, ok := m.files[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.files, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) PublicURL(key string) string {
	return joinURL(m.baseURL, key)
}

// Len reports how many files are stored.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// ContentType returns the content type recorded for key.
func (m *MemoryStorage) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files[key].contentType
}
