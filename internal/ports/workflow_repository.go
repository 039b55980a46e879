package ports

import "context"

type WorkflowState struct {
	EntityID     string
	CurrentState string
	CreatedAt    string
	UpdatedAt    string
}

type WorkflowTransition struct {
	TransitionID     uint64
	EntityID         string
	FromState        string
	ToState          string
	ActorID          string
	ActorRoles       string
	RequiresApproval bool
	CreatedAt        string
}

// WorkflowRepository persists per-entity state plus an append-only transition
// history. History rows are never rewritten; AdvanceState appends one row and
// moves the pointer in the same transaction (callers wrap it in a unit of
// work).
type WorkflowRepository interface {
	CreateState(ctx context.Context, state WorkflowState) (bool, error)
	GetState(ctx context.Context, entityID string) (WorkflowState, error)
	AdvanceState(ctx context.Context, transition WorkflowTransition, updatedAt string) error
	ListTransitions(ctx context.Context, entityID string) ([]WorkflowTransition, error)
}
