package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mvanek/userimport/internal/core"
)

// GroupStore implements core.GroupStore on PostgreSQL.
type GroupStore struct {
	db DBTX
}

// NewGroupStore creates a group store on the given connection.
func NewGroupStore(db DBTX) *GroupStore {
	return &GroupStore{db: db}
}

// ListAll returns every group, in id order.
func (s *GroupStore) ListAll(ctx context.Context) ([]core.Group, error) {
	const q = `SELECT id, name FROM groups ORDER BY id`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []core.Group
	for rows.Next() {
		var g core.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// Get returns the group with the given id, or nil when it does not exist.
func (s *GroupStore) Get(ctx context.Context, id int) (*core.Group, error) {
	const q = `SELECT id, name FROM groups WHERE id = $1`

	var g core.Group
	err := s.db.QueryRow(ctx, q, id).Scan(&g.ID, &g.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group %d: %w", id, err)
	}
	return &g, nil
}

// AddMembership grants an account membership in a group. Granting an
// already-held membership is a no-op.
func (s *GroupStore) AddMembership(ctx context.Context, accountID, groupID int) error {
	const q = `
		INSERT INTO group_users (user_id, group_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, group_id) DO NOTHING`

	if _, err := s.db.Exec(ctx, q, accountID, groupID); err != nil {
		return fmt.Errorf("add account %d to group %d: %w", accountID, groupID, err)
	}
	return nil
}
