package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"tallybook/internal/domain/ledger"
	"tallybook/internal/infrastructure/persistence/sqlite/model"
	"tallybook/internal/ports"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "ledger.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&model.DatasetVersion{},
		&model.RawRecord{},
		&model.WorkflowState{},
		&model.WorkflowTransition{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func TestInsertRawRecordReportsCreation(t *testing.T) {
	repo := NewLedgerRepository(setupDB(t))
	ctx := context.Background()

	create := ports.RawRecordCreate{
		RawRecordID:      "rec-1",
		DatasetVersionID: "dv-1",
		Payload:          `{"a":1}`,
		CreatedAt:        "2026-08-01T00:00:00Z",
	}
	inserted, err := repo.InsertRawRecord(ctx, create)
	if err != nil {
		t.Fatalf("InsertRawRecord() error = %v", err)
	}
	if !inserted {
		t.Fatalf("first insert reported no creation")
	}

	// A second insert on the same key is ignored, and the stored row keeps
	// the first writer's content.
	create.Payload = `{"a":2}`
	inserted, err = repo.InsertRawRecord(ctx, create)
	if err != nil {
		t.Fatalf("second InsertRawRecord() error = %v", err)
	}
	if inserted {
		t.Fatalf("conflicting insert reported creation")
	}

	stored, err := repo.GetRawRecord(ctx, "rec-1")
	if err != nil {
		t.Fatalf("GetRawRecord() error = %v", err)
	}
	if stored.Payload != `{"a":1}` {
		t.Fatalf("stored payload = %s, first writer lost", stored.Payload)
	}
}

func TestMarkRawRecordLegacyTouchesOnlyTheFlag(t *testing.T) {
	repo := NewLedgerRepository(setupDB(t))
	ctx := context.Background()

	if _, err := repo.InsertRawRecord(ctx, ports.RawRecordCreate{
		RawRecordID:      "rec-1",
		DatasetVersionID: "dv-1",
		Payload:          `{"a":1}`,
		CreatedAt:        "2026-08-01T00:00:00Z",
	}); err != nil {
		t.Fatalf("InsertRawRecord() error = %v", err)
	}

	if err := repo.MarkRawRecordLegacy(ctx, "rec-1"); err != nil {
		t.Fatalf("MarkRawRecordLegacy() error = %v", err)
	}

	stored, err := repo.GetRawRecord(ctx, "rec-1")
	if err != nil {
		t.Fatalf("GetRawRecord() error = %v", err)
	}
	if !stored.LegacyNoChecksum || stored.Payload != `{"a":1}` {
		t.Fatalf("unexpected record after flagging: %#v", stored)
	}

	if err := repo.MarkRawRecordLegacy(ctx, "absent"); !errors.Is(err, ledger.ErrRawRecordNotFound) {
		t.Fatalf("MarkRawRecordLegacy(absent) error = %v, want ErrRawRecordNotFound", err)
	}
}

func TestAdvanceStateGuardsAgainstStaleFromState(t *testing.T) {
	repo := NewWorkflowRepository(setupDB(t))
	ctx := context.Background()

	if _, err := repo.CreateState(ctx, ports.WorkflowState{
		EntityID:     "finding-1",
		CurrentState: "draft",
		CreatedAt:    "2026-08-01T00:00:00Z",
		UpdatedAt:    "2026-08-01T00:00:00Z",
	}); err != nil {
		t.Fatalf("CreateState() error = %v", err)
	}

	if err := repo.AdvanceState(ctx, ports.WorkflowTransition{
		EntityID:  "finding-1",
		FromState: "draft",
		ToState:   "in_review",
		ActorID:   "alex",
		CreatedAt: "2026-08-01T00:00:01Z",
	}, "2026-08-01T00:00:01Z"); err != nil {
		t.Fatalf("AdvanceState() error = %v", err)
	}

	// The entity already left draft, so the same advance loses.
	err := repo.AdvanceState(ctx, ports.WorkflowTransition{
		EntityID:  "finding-1",
		FromState: "draft",
		ToState:   "in_review",
		ActorID:   "alex",
		CreatedAt: "2026-08-01T00:00:02Z",
	}, "2026-08-01T00:00:02Z")
	if !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("stale AdvanceState() error = %v, want ErrInvalidTransition", err)
	}

	state, err := repo.GetState(ctx, "finding-1")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.CurrentState != "in_review" {
		t.Fatalf("current state = %s, want in_review", state.CurrentState)
	}
}
