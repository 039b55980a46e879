package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tallybook/internal/domain/ledger"
	"tallybook/internal/errs"
	"tallybook/internal/infrastructure/persistence/sqlite/model"
	"tallybook/internal/ports"
)

type WorkflowRepository struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func (r *WorkflowRepository) CreateState(ctx context.Context, state ports.WorkflowState) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	row := model.WorkflowState{
		EntityID:     state.EntityID,
		CurrentState: state.CurrentState,
		CreatedAt:    state.CreatedAt,
		UpdatedAt:    state.UpdatedAt,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_id"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "insert workflow state")
	}
	return result.RowsAffected > 0, nil
}

func (r *WorkflowRepository) GetState(ctx context.Context, entityID string) (ports.WorkflowState, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.WorkflowState{}, err
	}

	var row model.WorkflowState
	if err := db.Where("entity_id = ?", entityID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.WorkflowState{}, fmt.Errorf("%w: %s", ledger.ErrWorkflowStateMissing, entityID)
		}
		return ports.WorkflowState{}, errs.Wrap(err, "query workflow state")
	}
	return ports.WorkflowState{
		EntityID:     row.EntityID,
		CurrentState: row.CurrentState,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

// AdvanceState appends one history row and moves the current-state pointer.
// The guarded update re-checks from_state so a racing transition loses
// instead of silently double-applying; callers run this inside a unit of
// work so the append and the pointer move commit together.
func (r *WorkflowRepository) AdvanceState(ctx context.Context, transition ports.WorkflowTransition, updatedAt string) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.WorkflowTransition{
		EntityID:         transition.EntityID,
		FromState:        transition.FromState,
		ToState:          transition.ToState,
		ActorID:          transition.ActorID,
		ActorRoles:       transition.ActorRoles,
		RequiresApproval: transition.RequiresApproval,
		CreatedAt:        transition.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert workflow transition")
	}

	result := db.Model(&model.WorkflowState{}).
		Where("entity_id = ? AND current_state = ?", transition.EntityID, transition.FromState).
		Updates(map[string]any{
			"current_state": transition.ToState,
			"updated_at":    updatedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update workflow current state")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s left state %s concurrently",
			ledger.ErrInvalidTransition, transition.EntityID, transition.FromState)
	}
	return nil
}

func (r *WorkflowRepository) ListTransitions(ctx context.Context, entityID string) ([]ports.WorkflowTransition, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.WorkflowTransition
	if err := db.
		Where("entity_id = ?", entityID).
		Order("transition_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query workflow transitions")
	}

	items := make([]ports.WorkflowTransition, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.WorkflowTransition{
			TransitionID:     row.TransitionID,
			EntityID:         row.EntityID,
			FromState:        row.FromState,
			ToState:          row.ToState,
			ActorID:          row.ActorID,
			ActorRoles:       row.ActorRoles,
			RequiresApproval: row.RequiresApproval,
			CreatedAt:        row.CreatedAt,
		})
	}
	return items, nil
}
