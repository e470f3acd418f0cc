package core

// Service wires the import pipeline to its backing stores. All operations
// are synchronous and operation-scoped: group and account state is
// re-read from the stores on every call, never cached across operations.
type Service struct {
	accounts AccountStore
	groups   GroupStore
	staging  StagingStore
	history  HistoryStore
	policy   UsernamePolicy
}

// NewService creates a Service. history may be nil to disable commit
// history recording.
func NewService(accounts AccountStore, groups GroupStore, staging StagingStore, history HistoryStore, policy UsernamePolicy) *Service {
	return &Service{
		accounts: accounts,
		groups:   groups,
		staging:  staging,
		history:  history,
		policy:   policy,
	}
}
