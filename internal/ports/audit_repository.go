package ports

import "context"

type AuditEntry struct {
	EntryID          uint64
	ActorID          string
	ActorType        string
	ActionType       string
	ActionLabel      string
	DatasetVersionID string
	Reason           string
	ContextJSON      string
	Status           string
	ErrorMessage     string
	CreatedAt        string
}

type AuditFilter struct {
	DatasetVersionID string
	ActionType       string
	Limit            int
}

// AuditRepository is append-only: entries are never updated or deleted.
type AuditRepository interface {
	AppendEntry(ctx context.Context, entry AuditEntry) error
	QueryEntries(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}
