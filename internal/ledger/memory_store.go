package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps records in process memory; used when no database is
// configured, and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Record)}
}

func (m *MemoryStore) Insert(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.RunID) == "" {
		return fmt.Errorf("ledger: run_id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[rec.RunID]; exists {
		return fmt.Errorf("ledger: duplicate run_id %q", rec.RunID)
	}
	m.byID[rec.RunID] = rec
	return nil
}

func (m *MemoryStore) List(ctx context.Context, ownerID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, rec := range m.byID {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, runID, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[runID]
	if !ok {
		return ErrNotFound
	}
	if rec.OwnerID != ownerID {
		return ErrForbidden
	}
	delete(m.byID, runID)
	return nil
}
