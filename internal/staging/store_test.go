package staging

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvanek/userimport/internal/core"
)

const testToken = "0123456789abcdef0123456789abcdef"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func sampleSession() *core.Session {
	return &core.Session{
		Token:        testToken,
		CreatedAt:    time.Unix(1700000000, 0).UTC(),
		OriginalName: "users.xlsx",
		Records: []core.Record{
			{
				RowNumber:     2,
				FirstName:     "Ada",
				LastName:      "Lovelace",
				Email:         "ada@example.com",
				GroupIDs:      []int{1, 3},
				PendingTokens: []string{"Unknown Group"},
			},
			{
				RowNumber: 3,
				FirstName: "Grace",
				LastName:  "Hopper",
				Email:     "grace@example.com",
				GroupIDs:  []int{},
			},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	want := sampleSession()

	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, testToken)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.Token != want.Token {
		t.Errorf("token = %q, want %q", got.Token, want.Token)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
	if got.OriginalName != want.OriginalName {
		t.Errorf("originalName = %q, want %q", got.OriginalName, want.OriginalName)
	}
	if len(got.Records) != len(want.Records) {
		t.Fatalf("got %d records, want %d", len(got.Records), len(want.Records))
	}

	first := got.Records[0]
	if first.RowNumber != 2 || first.FirstName != "Ada" || first.Email != "ada@example.com" {
		t.Errorf("unexpected first record: %+v", first)
	}
	if len(first.GroupIDs) != 2 || first.GroupIDs[0] != 1 || first.GroupIDs[1] != 3 {
		t.Errorf("groupIds = %v, want [1 3]", first.GroupIDs)
	}
	if len(first.PendingTokens) != 1 || first.PendingTokens[0] != "Unknown Group" {
		t.Errorf("pendingTokens = %v, want [Unknown Group]", first.PendingTokens)
	}
}

func TestSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	session := sampleSession()

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save: %v", err)
	}

	session.Records = session.Records[:1]
	session.Records[0].FirstName = "Augusta"
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := store.Load(ctx, testToken)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Records) != 1 {
		t.Fatalf("got %d records after overwrite, want 1", len(got.Records))
	}
	if got.Records[0].FirstName != "Augusta" {
		t.Errorf("firstName = %q, want %q", got.Records[0].FirstName, "Augusta")
	}
}

func TestLoadUnknownToken(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background(), "ffffffffffffffffffffffffffffffff")
	if !errors.Is(err, core.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteThenLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Save(ctx, sampleSession()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, testToken); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := store.Load(ctx, testToken); !errors.Is(err, core.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}

	// Deleting again is a no-op.
	if err := store.Delete(ctx, testToken); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

// TestDocumentFieldNames pins the on-disk contract: other tools read these
// files, so the JSON keys must not drift.
func TestDocumentFieldNames(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := store.Save(ctx, sampleSession()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, testToken+".json"))
	if err != nil {
		t.Fatalf("read document: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}

	for _, key := range []string{"createdAt", "originalName", "rows"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("document is missing key %q", key)
		}
	}
	if created, ok := doc["createdAt"].(float64); !ok || int64(created) != 1700000000 {
		t.Errorf("createdAt = %v, want unix seconds 1700000000", doc["createdAt"])
	}

	rows, ok := doc["rows"].([]any)
	if !ok || len(rows) == 0 {
		t.Fatalf("rows = %v, want non-empty array", doc["rows"])
	}
	row, ok := rows[0].(map[string]any)
	if !ok {
		t.Fatalf("row 0 is not an object: %v", rows[0])
	}
	for _, key := range []string{"rowNumber", "firstName", "lastName", "email", "groupIds", "pendingTokens"} {
		if _, present := row[key]; !present {
			t.Errorf("row is missing key %q", key)
		}
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	bad := sampleSession()
	bad.Token = "../../etc/passwd"
	if err := store.Save(ctx, bad); err == nil {
		t.Error("Save accepted a malformed token")
	}

	if _, err := store.Load(ctx, "not-a-token"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("Load with malformed token: got %v, want ErrSessionNotFound", err)
	}
}
