package archivestore

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore is the in-process fallback used when no S3 endpoint is
// configured, and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Put(ctx context.Context, runID string, data []byte) (string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return "", fmt.Errorf("run_id is required")
	}
	ref := objectKey(runID)
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	m.data[ref] = cp
	m.mu.Unlock()
	return ref, nil
}

func (m *MemoryStore) Get(ctx context.Context, ref string) ([]byte, error) {
	m.mu.RLock()
	data, ok := m.data[strings.TrimSpace(ref)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}
