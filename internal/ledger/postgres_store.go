package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore persists records via database/sql with the pgx driver. A
// small LRU keeps per-owner listings hot; every write invalidates the
// owner's cached listing.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	listCache *lru.Cache[string, []Record]
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, []Record](256)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db, listCache: cache}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) ensureSchema() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS liberation_records (
  run_id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  project_name TEXT NOT NULL DEFAULT '',
  score_before INTEGER NOT NULL DEFAULT 0,
  score_after INTEGER NOT NULL DEFAULT 0,
  files_total INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
  archive_ref TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_liberation_records_owner ON liberation_records (owner_id);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	if err := s.ensureSchema(); err != nil {
		return fmt.Errorf("ledger: ensure schema: %w", err)
	}
	if strings.TrimSpace(rec.RunID) == "" {
		return fmt.Errorf("ledger: run_id is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO liberation_records
  (run_id, owner_id, project_name, score_before, score_after, files_total, created_at, archive_ref)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.RunID, rec.OwnerID, rec.ProjectName,
		rec.ScoreBefore, rec.ScoreAfter, rec.FilesTotal,
		rec.CreatedAt, rec.ArchiveRef)
	if err != nil {
		return fmt.Errorf("ledger: insert: %w", err)
	}
	s.listCache.Remove(rec.OwnerID)
	return nil
}

func (s *PostgresStore) List(ctx context.Context, ownerID string) ([]Record, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("ledger: ensure schema: %w", err)
	}
	if cached, ok := s.listCache.Get(ownerID); ok {
		return cached, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, owner_id, project_name, score_before, score_after, files_total, created_at, archive_ref
FROM liberation_records
WHERE owner_id = $1
ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.RunID, &rec.OwnerID, &rec.ProjectName,
			&rec.ScoreBefore, &rec.ScoreAfter, &rec.FilesTotal,
			&rec.CreatedAt, &rec.ArchiveRef); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: rows: %w", err)
	}
	s.listCache.Add(ownerID, out)
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, runID, ownerID string) error {
	if err := s.ensureSchema(); err != nil {
		return fmt.Errorf("ledger: ensure schema: %w", err)
	}
	var owner string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id FROM liberation_records WHERE run_id = $1`, runID).Scan(&owner)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("ledger: delete lookup: %w", err)
	}
	if owner != ownerID {
		return ErrForbidden
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM liberation_records WHERE run_id = $1 AND owner_id = $2`, runID, ownerID); err != nil {
		return fmt.Errorf("ledger: delete: %w", err)
	}
	s.listCache.Remove(ownerID)
	return nil
}
