// Package workflow drives RBAC-gated state transitions with append-only
// history.
package workflow

import (
	"context"
	"strings"
	"time"

	domainworkflow "tallybook/internal/domain/workflow"
	"tallybook/internal/ports"
	"tallybook/internal/usecase/audit"
)

type Service struct {
	repo  ports.WorkflowRepository
	rules *domainworkflow.RuleTable
	uow   ports.UnitOfWork
	audit *audit.Recorder
}

func NewService(repo ports.WorkflowRepository, rules *domainworkflow.RuleTable, uow ports.UnitOfWork, recorder *audit.Recorder) *Service {
	return &Service{repo: repo, rules: rules, uow: uow, audit: recorder}
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// CreateState starts an entity in the initial state. Re-creating an existing
// entity is a no-op returning the stored state; entity ids carry no payload,
// so there is nothing to conflict on.
func (s *Service) CreateState(ctx context.Context, entityID string, actor ports.Actor) (ports.WorkflowState, error) {
	now := nowString()
	create := ports.WorkflowState{
		EntityID:     strings.TrimSpace(entityID),
		CurrentState: s.rules.InitialState,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	inserted, err := s.repo.CreateState(ctx, create)
	var state ports.WorkflowState
	if err == nil {
		state, err = s.repo.GetState(ctx, create.EntityID)
	}
	s.audit.Record(ctx, audit.Action{
		Actor:   actor,
		Type:    "workflow.create_state",
		Label:   "create workflow state",
		Context: map[string]any{"entity_id": create.EntityID, "created": inserted},
	}, err)
	if err != nil {
		return ports.WorkflowState{}, err
	}
	return state, nil
}

type TransitionInput struct {
	EntityID string
	ToState  string
	Actor    ports.Actor
}

// Transition applies one state change. The rule table decides legality, the
// approval check runs here even when the boundary already checked it, and
// the history append plus pointer move commit in one transaction. A refused
// transition appends nothing.
func (s *Service) Transition(ctx context.Context, in TransitionInput) (ports.WorkflowState, error) {
	state, err := s.transition(ctx, in)
	s.audit.Record(ctx, audit.Action{
		Actor: in.Actor,
		Type:  "workflow.transition",
		Label: "workflow state transition",
		Context: map[string]any{
			"entity_id": strings.TrimSpace(in.EntityID),
			"to_state":  in.ToState,
		},
	}, err)
	return state, err
}

func (s *Service) transition(ctx context.Context, in TransitionInput) (ports.WorkflowState, error) {
	entityID := strings.TrimSpace(in.EntityID)

	current, err := s.repo.GetState(ctx, entityID)
	if err != nil {
		return ports.WorkflowState{}, err
	}

	rule, err := s.rules.Lookup(current.CurrentState, in.ToState)
	if err != nil {
		return ports.WorkflowState{}, err
	}
	if err := s.rules.Authorize(rule, in.Actor.Roles); err != nil {
		return ports.WorkflowState{}, err
	}

	now := nowString()
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.AdvanceState(txCtx, ports.WorkflowTransition{
			EntityID:         entityID,
			FromState:        current.CurrentState,
			ToState:          rule.To,
			ActorID:          in.Actor.ID,
			ActorRoles:       strings.Join(in.Actor.Roles, ","),
			RequiresApproval: rule.RequiresApproval,
			CreatedAt:        now,
		}, now)
	})
	if err != nil {
		return ports.WorkflowState{}, err
	}

	return s.repo.GetState(ctx, entityID)
}

// AuthorizeTransition checks a proposed transition without applying it. The
// transport layer calls this before Transition so authorization failures are
// caught before any write path is entered; Transition re-checks regardless.
func (s *Service) AuthorizeTransition(ctx context.Context, entityID, toState string, actor ports.Actor) error {
	current, err := s.repo.GetState(ctx, strings.TrimSpace(entityID))
	if err != nil {
		return err
	}
	rule, err := s.rules.Lookup(current.CurrentState, toState)
	if err != nil {
		return err
	}
	return s.rules.Authorize(rule, actor.Roles)
}

// History returns the append-only transition history of an entity.
func (s *Service) History(ctx context.Context, entityID string) ([]ports.WorkflowTransition, error) {
	if _, err := s.repo.GetState(ctx, strings.TrimSpace(entityID)); err != nil {
		return nil, err
	}
	return s.repo.ListTransitions(ctx, strings.TrimSpace(entityID))
}
