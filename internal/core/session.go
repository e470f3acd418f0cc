package core

// session.go covers the staging lifecycle: building a session from a
// decoded table, reloading it for review, applying reviewer edits and
// abandoning it.
//
// The staging store performs whole-document overwrites with no version
// check, so two concurrent edits to the same token clobber each other,
// last writer wins. See the Save doc comment in internal/staging.

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/mvanek/userimport/internal/xlsx"
)

// newToken returns a 128-bit random token, hex-encoded (32 characters),
// from a cryptographically secure source.
func newToken() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// BuildSession turns a decoded table into a staged session: headers are
// mapped to logical fields, cells are normalized, group tokens resolved
// against a fresh directory snapshot and existing accounts detected. The
// session is persisted under a new token before returning.
func (s *Service) BuildSession(ctx context.Context, originalName string, table *xlsx.Table) (*Session, error) {
	headerIdx, err := buildHeaderMap(table.Headers)
	if err != nil {
		return nil, err
	}

	dir, err := LoadGroupDirectory(ctx, s.groups)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(table.Rows))
	for i, row := range table.Rows {
		rec := Record{
			// The header occupies sheet row 1, data starts at 2.
			RowNumber: i + 2,
			FirstName: NormalizeName(cellAt(row, headerIdx, "name")),
			LastName:  NormalizeName(cellAt(row, headerIdx, "last name")),
			Email:     NormalizeEmail(cellAt(row, headerIdx, "email")),
			GroupIDs:  []int{},
		}

		for _, token := range SplitGroupCell(cellAt(row, headerIdx, "groups")) {
			if id, ok := dir.ResolveToken(token); ok {
				rec.GroupIDs = append(rec.GroupIDs, id)
			} else {
				rec.PendingTokens = append(rec.PendingTokens, token)
			}
		}
		rec.GroupIDs = dedupeIDs(rec.GroupIDs)

		if err := s.refreshExisting(ctx, &rec); err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, ErrEmptySheet
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	session := &Session{
		Token:        token,
		CreatedAt:    time.Now().UTC(),
		OriginalName: originalName,
		Records:      records,
	}
	if err := s.staging.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("stage import session: %w", err)
	}

	slog.Info("import session staged",
		"token", token,
		"file", originalName,
		"rows", len(records),
	)
	return session, nil
}

// LoadSession returns the staged session for a token. Existing-account
// detection is re-run for every record on each load; it is never cached
// across operations.
func (s *Service) LoadSession(ctx context.Context, token string) (*Session, error) {
	session, err := s.staging.Load(ctx, token)
	if err != nil {
		return nil, err
	}

	for i := range session.Records {
		if err := s.refreshExisting(ctx, &session.Records[i]); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// ReviseSession applies reviewer edits to a staged session, re-normalizes
// and re-validates the whole batch and, when every row passes, persists
// the revised session by full replacement. The returned error map keeps
// the review screen renderable; it is empty when the session was
// persisted.
func (s *Service) ReviseSession(ctx context.Context, token string, edits []RowEdit) (*Session, map[int][]ValidationError, error) {
	session, err := s.staging.Load(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	dir, err := LoadGroupDirectory(ctx, s.groups)
	if err != nil {
		return nil, nil, err
	}

	byRow := make(map[int]*Record, len(session.Records))
	for i := range session.Records {
		byRow[session.Records[i].RowNumber] = &session.Records[i]
	}

	for _, edit := range edits {
		rec, ok := byRow[edit.RowNumber]
		if !ok {
			continue
		}
		rec.FirstName = NormalizeName(edit.FirstName)
		rec.LastName = NormalizeName(edit.LastName)
		rec.Email = NormalizeEmail(edit.Email)

		// Keep resolved ids a subset of the directory: ids the snapshot
		// does not know are dropped rather than staged.
		ids := make([]int, 0, len(edit.GroupIDs))
		for _, id := range edit.GroupIDs {
			if dir.Contains(id) {
				ids = append(ids, id)
			}
		}
		rec.GroupIDs = dedupeIDs(ids)
	}

	for i := range session.Records {
		if err := s.refreshExisting(ctx, &session.Records[i]); err != nil {
			return nil, nil, err
		}
	}

	errs := Validate(session.Records)
	if len(errs) == 0 {
		if err := s.staging.Save(ctx, session); err != nil {
			return nil, nil, fmt.Errorf("persist import session: %w", err)
		}
	}
	return session, errs, nil
}

// AbandonSession discards a staged session. Deleting an unknown token is
// not an error.
func (s *Service) AbandonSession(ctx context.Context, token string) error {
	return s.staging.Delete(ctx, token)
}

// GroupOptions returns all known groups sorted by name for the review
// screen.
func (s *Service) GroupOptions(ctx context.Context) ([]Group, error) {
	dir, err := LoadGroupDirectory(ctx, s.groups)
	if err != nil {
		return nil, err
	}
	return dir.Options(), nil
}

// History lists recorded commits, newest first. Returns an empty list
// when history recording is disabled.
func (s *Service) History(ctx context.Context) ([]HistoryEntry, error) {
	if s.history == nil {
		return []HistoryEntry{}, nil
	}
	return s.history.List(ctx)
}

// refreshExisting re-runs the existing-account lookup for one record:
// an account whose email or username case-insensitively equals the
// record's email marks the row as an update.
func (s *Service) refreshExisting(ctx context.Context, rec *Record) error {
	if rec.Email == "" {
		rec.ExistingUserID = nil
		rec.ExistingGroupIDs = nil
		return nil
	}

	acct, err := s.accounts.FindByEmailOrUsername(ctx, rec.Email)
	if err != nil {
		return fmt.Errorf("detect existing account: %w", err)
	}
	if acct == nil {
		rec.ExistingUserID = nil
		rec.ExistingGroupIDs = nil
		return nil
	}

	groupIDs, err := s.accounts.ListGroupIDs(ctx, acct.ID)
	if err != nil {
		return fmt.Errorf("list account groups: %w", err)
	}

	id := acct.ID
	rec.ExistingUserID = &id
	rec.ExistingGroupIDs = groupIDs
	return nil
}
