// Package core provides the business logic for the bulk user import
// workflow: turning a decoded spreadsheet into reviewable records, staging
// them under a correlation token, validating edits and committing account
// creations, updates and group-membership grants.
//
// This package has no transport dependencies; the HTTP layer and the
// backing stores are wired in through the interfaces below.
package core

import (
	"context"
	"time"
)

// Record is one parsed-and-resolved spreadsheet row awaiting review.
type Record struct {
	// RowNumber is the 1-based sheet row; the header occupies row 1, so
	// data rows start at 2. Numbers are unique and preserve sheet order.
	RowNumber int `json:"rowNumber"`

	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`

	// Email is normalized: trimmed, inner spaces removed, lowercase.
	Email string `json:"email"`

	// GroupIDs holds resolved group ids, always a subset of the
	// directory's known ids.
	GroupIDs []int `json:"groupIds"`

	// PendingTokens holds group tokens that did not resolve to a known
	// group. They are surfaced to the reviewer, never discarded.
	PendingTokens []string `json:"pendingTokens"`

	// ExistingUserID is set when an account with this email or username
	// already exists; the commit then updates instead of creating.
	ExistingUserID   *int  `json:"existingUserId,omitempty"`
	ExistingGroupIDs []int `json:"existingGroupIds,omitempty"`
}

// Session is a staged import awaiting review. The token is its sole
// identity; there is no secondary indexing.
type Session struct {
	Token        string
	CreatedAt    time.Time
	OriginalName string
	Records      []Record
}

// RowEdit carries the reviewer-editable fields of one row on a review
// submission. Rows are matched to the staged session by RowNumber.
type RowEdit struct {
	RowNumber int    `json:"rowNumber"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	GroupIDs  []int  `json:"groupIds"`
}

// Account is the value record exchanged with the account store. The core
// never holds a live handle into host persistence, only ids and values.
type Account struct {
	ID        int
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// NewAccount holds the fields for creating an account.
type NewAccount struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// Group is a directory entry.
type Group struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// RowOutcome describes what the commit did for a single row.
type RowOutcome struct {
	Email       string   `json:"email"`
	Action      string   `json:"action"` // "create" or "update"
	AccountID   int      `json:"accountId"`
	GroupsAdded []string `json:"groupsAdded"`
}

// CommitResult summarizes a completed commit. It is only produced when
// every row was written; a partial run returns an error instead.
type CommitResult struct {
	Created int          `json:"created"`
	Updated int          `json:"updated"`
	Rows    []RowOutcome `json:"rows"`
}

// HistoryEntry records one completed commit for the history listing.
type HistoryEntry struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	CommittedAt time.Time `json:"committedAt"`
}

// AccountStore is the host account backend.
//
// FindByEmailOrUsername matches the stored email or username
// case-insensitively against a normalized email and returns nil when no
// account matches.
type AccountStore interface {
	Create(ctx context.Context, acct NewAccount) (int, error)
	Update(ctx context.Context, id int, firstName, lastName string) error
	Get(ctx context.Context, id int) (*Account, error)
	FindByEmailOrUsername(ctx context.Context, email string) (*Account, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	ListGroupIDs(ctx context.Context, accountID int) ([]int, error)
}

// GroupStore is the host group backend. Get returns nil for an unknown id.
type GroupStore interface {
	ListAll(ctx context.Context) ([]Group, error)
	Get(ctx context.Context, id int) (*Group, error)
	AddMembership(ctx context.Context, accountID, groupID int) error
}

// StagingStore persists import sessions keyed by token, durably and
// independently of the serving process.
//
// Save overwrites unconditionally and atomically. Load returns
// ErrSessionNotFound for an unknown token. Delete is idempotent.
type StagingStore interface {
	Save(ctx context.Context, session *Session) error
	Load(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

// HistoryStore records completed commits. It is optional; a nil store
// disables history.
type HistoryStore interface {
	RecordCommit(ctx context.Context, entry HistoryEntry) error
	List(ctx context.Context) ([]HistoryEntry, error)
}

// UsernamePolicy is the host-configurable username length policy.
type UsernamePolicy struct {
	MaxLength int // default 50 when zero
	MinLength int // default 1 when zero
}

const (
	defaultUsernameMaxLength = 50
	defaultUsernameMinLength = 1
)

// maxLen returns the effective maximum username length.
func (p UsernamePolicy) maxLen() int {
	if p.MaxLength <= 0 {
		return defaultUsernameMaxLength
	}
	return p.MaxLength
}

// minLen returns the effective minimum username length.
func (p UsernamePolicy) minLen() int {
	if p.MinLength <= 0 {
		return defaultUsernameMinLength
	}
	return p.MinLength
}
