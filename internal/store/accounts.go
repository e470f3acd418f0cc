package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/mvanek/userimport/internal/core"
)

// AccountStore implements core.AccountStore on PostgreSQL.
type AccountStore struct {
	db DBTX
}

// NewAccountStore creates an account store on the given connection.
func NewAccountStore(db DBTX) *AccountStore {
	return &AccountStore{db: db}
}

// Create inserts a new enabled account and returns its id.
func (s *AccountStore) Create(ctx context.Context, acct core.NewAccount) (int, error) {
	const q = `
		INSERT INTO users (username, email, first_name, last_name, status, created_at)
		VALUES ($1, $2, $3, $4, 'enabled', now())
		RETURNING id`

	var id int
	err := s.db.QueryRow(ctx, q, acct.Username, acct.Email, acct.FirstName, acct.LastName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}
	return id, nil
}

// Update replaces the account's first and last name.
func (s *AccountStore) Update(ctx context.Context, id int, firstName, lastName string) error {
	const q = `UPDATE users SET first_name = $2, last_name = $3 WHERE id = $1`

	tag, err := s.db.Exec(ctx, q, id, firstName, lastName)
	if err != nil {
		return fmt.Errorf("update account %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update account %d: no such account", id)
	}
	return nil
}

// Get returns the account with the given id, or nil when it does not
// exist.
func (s *AccountStore) Get(ctx context.Context, id int) (*core.Account, error) {
	const q = `SELECT id, username, email, first_name, last_name FROM users WHERE id = $1`

	acct, err := scanAccount(s.db.QueryRow(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}
	return acct, nil
}

// FindByEmailOrUsername returns the account whose email or username
// case-insensitively equals the normalized email, or nil when no account
// matches.
func (s *AccountStore) FindByEmailOrUsername(ctx context.Context, email string) (*core.Account, error) {
	const q = `
		SELECT id, username, email, first_name, last_name
		FROM users
		WHERE LOWER(email) = $1 OR LOWER(username) = $1
		LIMIT 1`

	acct, err := scanAccount(s.db.QueryRow(ctx, q, strings.ToLower(email)))
	if err != nil {
		return nil, fmt.Errorf("find account by %q: %w", email, err)
	}
	return acct, nil
}

// UsernameExists reports whether the exact username is taken.
func (s *AccountStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`

	var exists bool
	if err := s.db.QueryRow(ctx, q, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("check username %q: %w", username, err)
	}
	return exists, nil
}

// ListGroupIDs returns the ids of the groups the account belongs to.
func (s *AccountStore) ListGroupIDs(ctx context.Context, accountID int) ([]int, error) {
	const q = `SELECT group_id FROM group_users WHERE user_id = $1 ORDER BY group_id`

	rows, err := s.db.Query(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("list groups of account %d: %w", accountID, err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list groups of account %d: %w", accountID, err)
	}
	return ids, nil
}

func scanAccount(row pgx.Row) (*core.Account, error) {
	var acct core.Account
	err := row.Scan(&acct.ID, &acct.Username, &acct.Email, &acct.FirstName, &acct.LastName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}
