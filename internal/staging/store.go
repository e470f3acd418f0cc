// Package staging persists import sessions as one JSON document per token
// in a local directory, durable across processes. Cleanup of abandoned
// sessions is out of scope; no TTL is enforced here.
package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/mvanek/userimport/internal/core"
)

// tokenPattern matches the 32-character hex tokens issued by the core.
// Anything else is rejected before it can touch the filesystem.
var tokenPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Store is a token-addressed staging store backed by JSON files.
type Store struct {
	dir string
}

// NewStore creates the staging directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// document is the on-disk session payload. Field names and types are a
// durable contract; other tools read these files.
type document struct {
	CreatedAt    int64    `json:"createdAt"` // unix seconds
	OriginalName string   `json:"originalName"`
	Rows         []rowDoc `json:"rows"`
}

type rowDoc struct {
	RowNumber     int      `json:"rowNumber"`
	FirstName     string   `json:"firstName"`
	LastName      string   `json:"lastName"`
	Email         string   `json:"email"`
	GroupIDs      []int    `json:"groupIds"`
	PendingTokens []string `json:"pendingTokens"`
}

// Save writes the session document, overwriting any previous version
// unconditionally. The write is atomic (temp file + rename) so readers
// never observe a torn document, but there is no version check: two
// concurrent edits to the same token silently clobber each other, last
// writer wins.
func (s *Store) Save(ctx context.Context, session *core.Session) error {
	path, err := s.path(session.Token)
	if err != nil {
		return err
	}

	doc := document{
		CreatedAt:    session.CreatedAt.Unix(),
		OriginalName: session.OriginalName,
		Rows:         make([]rowDoc, len(session.Records)),
	}
	for i, rec := range session.Records {
		doc.Rows[i] = rowDoc{
			RowNumber:     rec.RowNumber,
			FirstName:     rec.FirstName,
			LastName:      rec.LastName,
			Email:         rec.Email,
			GroupIDs:      emptyNotNil(rec.GroupIDs),
			PendingTokens: emptyStringsNotNil(rec.PendingTokens),
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session document: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, session.Token+".tmp-*")
	if err != nil {
		return fmt.Errorf("create session temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write session document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close session temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace session document: %w", err)
	}
	return nil
}

// Load reads the session for a token. Returns core.ErrSessionNotFound
// when no document exists.
func (s *Store) Load(ctx context.Context, token string) (*core.Session, error) {
	path, err := s.path(token)
	if err != nil {
		return nil, core.ErrSessionNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("read session document: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode session document: %w", err)
	}

	session := &core.Session{
		Token:        token,
		CreatedAt:    time.Unix(doc.CreatedAt, 0).UTC(),
		OriginalName: doc.OriginalName,
		Records:      make([]core.Record, len(doc.Rows)),
	}
	for i, row := range doc.Rows {
		session.Records[i] = core.Record{
			RowNumber:     row.RowNumber,
			FirstName:     row.FirstName,
			LastName:      row.LastName,
			Email:         row.Email,
			GroupIDs:      emptyNotNil(row.GroupIDs),
			PendingTokens: emptyStringsNotNil(row.PendingTokens),
		}
	}
	return session, nil
}

// Delete removes the session document. Deleting an absent token is a
// no-op.
func (s *Store) Delete(ctx context.Context, token string) error {
	path, err := s.path(token)
	if err != nil {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete session document: %w", err)
	}
	return nil
}

func (s *Store) path(token string) (string, error) {
	if !tokenPattern.MatchString(token) {
		return "", fmt.Errorf("invalid session token %q", token)
	}
	return filepath.Join(s.dir, token+".json"), nil
}

func emptyNotNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}

func emptyStringsNotNil(tokens []string) []string {
	if tokens == nil {
		return []string{}
	}
	return tokens
}
