package archivestore

import (
	"context"
	"errors"
)

// Store persists produced archives and hands back opaque references.
type Store interface {
	// Put stores the archive for a run and returns its opaque reference.
	Put(ctx context.Context, runID string, data []byte) (string, error)
	// Get retrieves the archive bytes for a reference.
	Get(ctx context.Context, ref string) ([]byte, error)
}

var ErrNotFound = errors.New("archive not found")
