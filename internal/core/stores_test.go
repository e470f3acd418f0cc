package core

// stores_test.go holds in-memory fakes for the store interfaces, shared by
// the session, commit and validation tests.

import (
	"context"
	"strings"
)

type fakeAccounts struct {
	nextID   int
	accounts map[int]*Account
	groupsOf map[int][]int

	createErr error
	updateErr error
	created   []NewAccount
	updated   []int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		nextID:   1,
		accounts: make(map[int]*Account),
		groupsOf: make(map[int][]int),
	}
}

func (f *fakeAccounts) add(acct Account, groupIDs ...int) int {
	id := f.nextID
	f.nextID++
	acct.ID = id
	f.accounts[id] = &acct
	f.groupsOf[id] = append([]int{}, groupIDs...)
	return id
}

func (f *fakeAccounts) Create(ctx context.Context, acct NewAccount) (int, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.created = append(f.created, acct)
	return f.add(Account{
		Username:  acct.Username,
		Email:     acct.Email,
		FirstName: acct.FirstName,
		LastName:  acct.LastName,
	}), nil
}

func (f *fakeAccounts) Update(ctx context.Context, id int, firstName, lastName string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	acct, ok := f.accounts[id]
	if !ok {
		return nil
	}
	acct.FirstName = firstName
	acct.LastName = lastName
	f.updated = append(f.updated, id)
	return nil
}

func (f *fakeAccounts) Get(ctx context.Context, id int) (*Account, error) {
	acct, ok := f.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *acct
	return &copied, nil
}

func (f *fakeAccounts) FindByEmailOrUsername(ctx context.Context, email string) (*Account, error) {
	for _, acct := range f.accounts {
		if strings.EqualFold(acct.Email, email) || strings.EqualFold(acct.Username, email) {
			copied := *acct
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeAccounts) UsernameExists(ctx context.Context, username string) (bool, error) {
	for _, acct := range f.accounts {
		if acct.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAccounts) ListGroupIDs(ctx context.Context, accountID int) ([]int, error) {
	return append([]int{}, f.groupsOf[accountID]...), nil
}

type membership struct {
	AccountID int
	GroupID   int
}

type fakeGroups struct {
	groups []Group

	getCalls      int
	added         []membership
	membershipErr error
}

func (f *fakeGroups) ListAll(ctx context.Context) ([]Group, error) {
	return append([]Group{}, f.groups...), nil
}

func (f *fakeGroups) Get(ctx context.Context, id int) (*Group, error) {
	f.getCalls++
	for _, g := range f.groups {
		if g.ID == id {
			copied := g
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeGroups) AddMembership(ctx context.Context, accountID, groupID int) error {
	if f.membershipErr != nil {
		return f.membershipErr
	}
	f.added = append(f.added, membership{AccountID: accountID, GroupID: groupID})
	return nil
}

type fakeStaging struct {
	sessions map[string]*Session
	saveErr  error
}

func newFakeStaging() *fakeStaging {
	return &fakeStaging{sessions: make(map[string]*Session)}
}

func (f *fakeStaging) Save(ctx context.Context, session *Session) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	copied := *session
	copied.Records = append([]Record{}, session.Records...)
	f.sessions[session.Token] = &copied
	return nil
}

func (f *fakeStaging) Load(ctx context.Context, token string) (*Session, error) {
	session, ok := f.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *session
	copied.Records = append([]Record{}, session.Records...)
	return &copied, nil
}

func (f *fakeStaging) Delete(ctx context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

type fakeHistory struct {
	entries []HistoryEntry
}

func (f *fakeHistory) RecordCommit(ctx context.Context, entry HistoryEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeHistory) List(ctx context.Context) ([]HistoryEntry, error) {
	return append([]HistoryEntry{}, f.entries...), nil
}
