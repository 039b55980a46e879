package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"tallybook/internal/domain/ledger"
	domainworkflow "tallybook/internal/domain/workflow"
	"tallybook/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "tallybook/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "tallybook/internal/infrastructure/persistence/sqlite/uow"
	"tallybook/internal/ports"
	"tallybook/internal/usecase/audit"
)

func setupService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "ledger.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&model.WorkflowState{},
		&model.WorkflowTransition{},
		&model.AuditEntry{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	recorder := audit.NewRecorder(sqliterepo.NewAuditRepository(db))
	return NewService(
		sqliterepo.NewWorkflowRepository(db),
		domainworkflow.Default(),
		sqliteuow.NewUnitOfWork(db),
		recorder,
	)
}

func editor() ports.Actor {
	return ports.Actor{ID: "alex", Type: "user", Roles: []string{"editor"}}
}

func approver() ports.Actor {
	return ports.Actor{ID: "rory", Type: "user", Roles: []string{"approver"}}
}

func TestCreateStateStartsAtInitialAndIsIdempotent(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	state, err := svc.CreateState(ctx, "finding-1", editor())
	if err != nil {
		t.Fatalf("CreateState() error = %v", err)
	}
	if state.CurrentState != "draft" {
		t.Fatalf("current state = %s, want draft", state.CurrentState)
	}

	again, err := svc.CreateState(ctx, "finding-1", editor())
	if err != nil {
		t.Fatalf("repeat CreateState() error = %v", err)
	}
	if again != state {
		t.Fatalf("repeat returned %#v, want stored %#v", again, state)
	}
}

func TestTransitionMovesStateAndAppendsHistory(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	if _, err := svc.CreateState(ctx, "finding-1", editor()); err != nil {
		t.Fatalf("CreateState() error = %v", err)
	}

	state, err := svc.Transition(ctx, TransitionInput{
		EntityID: "finding-1",
		ToState:  "in_review",
		Actor:    editor(),
	})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if state.CurrentState != "in_review" {
		t.Fatalf("current state = %s, want in_review", state.CurrentState)
	}

	history, err := svc.History(ctx, "finding-1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history len = %d, want 1", len(history))
	}
	if history[0].FromState != "draft" || history[0].ToState != "in_review" || history[0].ActorID != "alex" {
		t.Fatalf("unexpected history row: %#v", history[0])
	}
}

func TestTransitionRejectsAbsentRule(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	if _, err := svc.CreateState(ctx, "finding-1", editor()); err != nil {
		t.Fatalf("CreateState() error = %v", err)
	}

	_, err := svc.Transition(ctx, TransitionInput{
		EntityID: "finding-1",
		ToState:  "archived",
		Actor:    approver(),
	})
	if !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("Transition() error = %v, want ErrInvalidTransition", err)
	}
}

func TestRefusedTransitionAppendsNoHistory(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	if _, err := svc.CreateState(ctx, "finding-1", editor()); err != nil {
		t.Fatalf("CreateState() error = %v", err)
	}
	if _, err := svc.Transition(ctx, TransitionInput{
		EntityID: "finding-1",
		ToState:  "in_review",
		Actor:    editor(),
	}); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	// Approval transition without the approver role is refused.
	_, err := svc.Transition(ctx, TransitionInput{
		EntityID: "finding-1",
		ToState:  "approved",
		Actor:    editor(),
	})
	if !errors.Is(err, ledger.ErrMissingPrerequisites) {
		t.Fatalf("Transition() error = %v, want ErrMissingPrerequisites", err)
	}

	state, err := svc.Transition(ctx, TransitionInput{
		EntityID: "finding-1",
		ToState:  "approved",
		Actor:    approver(),
	})
	if err != nil {
		t.Fatalf("approved Transition() error = %v", err)
	}
	if state.CurrentState != "approved" {
		t.Fatalf("current state = %s, want approved", state.CurrentState)
	}

	history, err := svc.History(ctx, "finding-1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history len = %d, want 2 (refusal must not append)", len(history))
	}
}

func TestAuthorizeTransitionChecksWithoutApplying(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	if _, err := svc.CreateState(ctx, "finding-1", editor()); err != nil {
		t.Fatalf("CreateState() error = %v", err)
	}

	if err := svc.AuthorizeTransition(ctx, "finding-1", "in_review", editor()); err != nil {
		t.Fatalf("AuthorizeTransition() error = %v", err)
	}

	state, err := svc.History(ctx, "finding-1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(state) != 0 {
		t.Fatalf("authorization appended history: %#v", state)
	}

	if err := svc.AuthorizeTransition(ctx, "absent", "in_review", editor()); !errors.Is(err, ledger.ErrWorkflowStateMissing) {
		t.Fatalf("AuthorizeTransition() error = %v, want ErrWorkflowStateMissing", err)
	}
}

func TestTransitionUnknownEntity(t *testing.T) {
	svc := setupService(t)

	_, err := svc.Transition(context.Background(), TransitionInput{
		EntityID: "ghost",
		ToState:  "in_review",
		Actor:    editor(),
	})
	if !errors.Is(err, ledger.ErrWorkflowStateMissing) {
		t.Fatalf("Transition() error = %v, want ErrWorkflowStateMissing", err)
	}
}
