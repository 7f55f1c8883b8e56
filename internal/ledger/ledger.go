package ledger

import (
	"context"
	"errors"
	"time"
)

// Record is one immutable history entry per completed liberation run. It is
// created exactly once at the end of a successful run, never mutated, and
// deletable only by its owner.
type Record struct {
	RunID       string    `json:"run_id"`
	OwnerID     string    `json:"owner_id"`
	ProjectName string    `json:"project_name"`
	ScoreBefore int       `json:"score_before"`
	ScoreAfter  int       `json:"score_after"`
	FilesTotal  int       `json:"files_total"`
	CreatedAt   time.Time `json:"created_at"`
	ArchiveRef  string    `json:"archive_ref"`
}

// Store is the history-store boundary. Ledger failures are logged and never
// invalidate an already-produced archive.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	List(ctx context.Context, ownerID string) ([]Record, error)
	Delete(ctx context.Context, runID, ownerID string) error
}

var (
	ErrNotFound  = errors.New("ledger: record not found")
	ErrForbidden = errors.New("ledger: record owned by another user")
)
