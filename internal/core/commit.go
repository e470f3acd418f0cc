package core

// commit.go is the commit engine: it walks the reviewed records in order
// and creates or updates one account per row. There is no cross-row
// transaction; a failure aborts the call and rows already written stay
// written. The returned summary is only produced for a fully completed
// run — a partial run never fabricates one.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
)

// CommitSession validates the staged session one final time, commits it,
// records the outcome in the history and discards the staging document.
func (s *Service) CommitSession(ctx context.Context, token string) (*CommitResult, error) {
	session, err := s.LoadSession(ctx, token)
	if err != nil {
		return nil, err
	}

	if errs := Validate(session.Records); len(errs) > 0 {
		return nil, ErrValidationFailed
	}

	result, err := s.Commit(ctx, session.Records)
	if err != nil {
		return nil, err
	}

	if s.history != nil {
		entry := HistoryEntry{
			FileName:    session.OriginalName,
			Created:     result.Created,
			Updated:     result.Updated,
			CommittedAt: time.Now().UTC(),
		}
		if err := s.history.RecordCommit(ctx, entry); err != nil {
			// The accounts are already written; a history failure must
			// not turn the commit into a reported failure.
			slog.Warn("failed to record commit history", "error", err)
		}
	}

	if err := s.staging.Delete(ctx, token); err != nil {
		slog.Warn("failed to discard committed session", "token", token, "error", err)
	}

	slog.Info("import committed",
		"token", token,
		"created", result.Created,
		"updated", result.Updated,
	)
	return result, nil
}

// Commit processes records sequentially: updates for rows with a detected
// existing account, creations otherwise, followed by an additions-only
// group diff. Group lookups are cached for the duration of this call only.
func (s *Service) Commit(ctx context.Context, records []Record) (*CommitResult, error) {
	result := &CommitResult{Rows: make([]RowOutcome, 0, len(records))}
	groupCache := make(map[int]*Group)

	for _, rec := range records {
		var accountID int
		var action string

		if rec.ExistingUserID != nil {
			acct, err := s.accounts.Get(ctx, *rec.ExistingUserID)
			if err != nil {
				return nil, &CommitError{Email: rec.Email, Msg: "unable to load account for update", Err: err}
			}
			if acct == nil {
				return nil, &CommitError{Email: rec.Email, Msg: "account could not be loaded for update"}
			}
			if err := s.accounts.Update(ctx, acct.ID, rec.FirstName, rec.LastName); err != nil {
				return nil, &CommitError{Email: rec.Email, Msg: "unable to update account", Err: err}
			}
			accountID = acct.ID
			action = "update"
			result.Updated++
		} else {
			username, err := s.generateUsername(ctx, rec.Email)
			if err != nil {
				return nil, &CommitError{Email: rec.Email, Msg: "unable to generate username", Err: err}
			}
			id, err := s.accounts.Create(ctx, NewAccount{
				Username:  username,
				Email:     rec.Email,
				FirstName: rec.FirstName,
				LastName:  rec.LastName,
			})
			if err != nil {
				return nil, &CommitError{Email: rec.Email, Msg: "unable to create account", Err: err}
			}
			accountID = id
			action = "create"
			result.Created++
		}

		added, err := s.applyGroups(ctx, accountID, rec, groupCache)
		if err != nil {
			return nil, err
		}

		result.Rows = append(result.Rows, RowOutcome{
			Email:       rec.Email,
			Action:      action,
			AccountID:   accountID,
			GroupsAdded: added,
		})
	}

	return result, nil
}

// applyGroups grants the memberships present in the record but absent
// from the account's current set. Removals are never computed.
func (s *Service) applyGroups(ctx context.Context, accountID int, rec Record, cache map[int]*Group) ([]string, error) {
	current, err := s.accounts.ListGroupIDs(ctx, accountID)
	if err != nil {
		return nil, &CommitError{Email: rec.Email, Msg: "unable to list current groups", Err: err}
	}

	currentSet := make(map[int]bool, len(current))
	for _, id := range current {
		currentSet[id] = true
	}

	added := []string{}
	for _, groupID := range rec.GroupIDs {
		if currentSet[groupID] {
			continue
		}

		group, ok := cache[groupID]
		if !ok {
			group, err = s.groups.Get(ctx, groupID)
			if err != nil {
				return nil, &CommitError{Email: rec.Email, Msg: "unable to load group", Err: err}
			}
			cache[groupID] = group
		}
		if group == nil {
			continue
		}

		if err := s.groups.AddMembership(ctx, accountID, groupID); err != nil {
			return nil, &CommitError{Email: rec.Email, Msg: fmt.Sprintf("unable to add membership in %q", group.Name), Err: err}
		}
		added = append(added, group.Name)
	}

	return added, nil
}

// generateUsername synthesizes a username from an email: lower-case,
// keep only letters, digits, '_', '-', '@' and '.', truncate to the
// policy maximum and right-pad with '0' to the minimum. On collision a
// "_N" suffix is appended, re-truncating the base so the result still
// fits, until a free username is found.
func (s *Service) generateUsername(ctx context.Context, email string) (string, error) {
	base := sanitizeUsername(email)
	if base == "" {
		base = "user"
	}

	maxLen := s.policy.maxLen()
	minLen := s.policy.minLen()

	base = truncate(base, maxLen)
	for len([]rune(base)) < minLen {
		base += "0"
	}

	candidate := base
	for suffix := 1; ; suffix++ {
		taken, err := s.accounts.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check username %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}

		tail := fmt.Sprintf("_%d", suffix)
		keep := maxLen - len(tail)
		if keep < 1 {
			keep = 1
		}
		candidate = truncate(base, keep) + tail
	}
}

// sanitizeUsername lower-cases and strips every character except letters,
// digits, underscore, hyphen, '@' and period.
func sanitizeUsername(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))

	var b strings.Builder
	for _, r := range value {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '@' || r == '.':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
