package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mvanek/userimport/internal/core"
)

// HistoryStore implements core.HistoryStore on PostgreSQL, recording one
// row per completed commit.
type HistoryStore struct {
	db DBTX
}

// NewHistoryStore creates a history store on the given connection.
func NewHistoryStore(db DBTX) *HistoryStore {
	return &HistoryStore{db: db}
}

// RecordCommit inserts a history row for a completed commit. The entry id
// is assigned here.
func (s *HistoryStore) RecordCommit(ctx context.Context, entry core.HistoryEntry) error {
	const q = `
		INSERT INTO import_commits (id, file_name, created_count, updated_count, committed_at)
		VALUES ($1, $2, $3, $4, $5)`

	id := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	_, err := s.db.Exec(ctx, q, id, entry.FileName, entry.Created, entry.Updated, entry.CommittedAt)
	if err != nil {
		return fmt.Errorf("record commit history: %w", err)
	}
	return nil
}

// List returns recorded commits, newest first, capped at 100 entries.
func (s *HistoryStore) List(ctx context.Context) ([]core.HistoryEntry, error) {
	const q = `
		SELECT id, file_name, created_count, updated_count, committed_at
		FROM import_commits
		ORDER BY committed_at DESC
		LIMIT 100`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list commit history: %w", err)
	}
	defer rows.Close()

	entries := []core.HistoryEntry{}
	for rows.Next() {
		var id pgtype.UUID
		var entry core.HistoryEntry
		if err := rows.Scan(&id, &entry.FileName, &entry.Created, &entry.Updated, &entry.CommittedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if id.Valid {
			entry.ID = uuid.UUID(id.Bytes).String()
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list commit history: %w", err)
	}
	return entries, nil
}
