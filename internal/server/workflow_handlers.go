package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tallybook/internal/ports"
	"tallybook/internal/usecase/workflow"
)

type workflowStateResponse struct {
	EntityID     string `json:"entity_id"`
	CurrentState string `json:"current_state"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func toWorkflowStateResponse(state ports.WorkflowState) workflowStateResponse {
	return workflowStateResponse{
		EntityID:     state.EntityID,
		CurrentState: state.CurrentState,
		CreatedAt:    state.CreatedAt,
		UpdatedAt:    state.UpdatedAt,
	}
}

type createStateRequest struct {
	EntityID string `json:"entity_id"`
}

func (s *Server) handleCreateWorkflowState(w http.ResponseWriter, r *http.Request) {
	var req createStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, badRequest(err))
		return
	}

	state, err := s.workflow.CreateState(r.Context(), req.EntityID, actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkflowStateResponse(state))
}

type transitionRequest struct {
	ToState string `json:"to_state"`
}

// handleTransition authorizes at the boundary before invoking the machine,
// which authorizes again itself; the double check is deliberate.
func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, badRequest(err))
		return
	}

	entityID := chi.URLParam(r, "entityID")
	actor := actorFrom(r.Context())

	if err := s.workflow.AuthorizeTransition(r.Context(), entityID, req.ToState, actor); err != nil {
		writeError(w, r, err)
		return
	}

	state, err := s.workflow.Transition(r.Context(), workflow.TransitionInput{
		EntityID: entityID,
		ToState:  req.ToState,
		Actor:    actor,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkflowStateResponse(state))
}

func (s *Server) handleListTransitions(w http.ResponseWriter, r *http.Request) {
	transitions, err := s.workflow.History(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	type item struct {
		TransitionID     uint64 `json:"transition_id"`
		FromState        string `json:"from_state"`
		ToState          string `json:"to_state"`
		ActorID          string `json:"actor_id"`
		ActorRoles       string `json:"actor_roles"`
		RequiresApproval bool   `json:"requires_approval"`
		CreatedAt        string `json:"created_at"`
	}
	items := make([]item, 0, len(transitions))
	for _, t := range transitions {
		items = append(items, item{
			TransitionID:     t.TransitionID,
			FromState:        t.FromState,
			ToState:          t.ToState,
			ActorID:          t.ActorID,
			ActorRoles:       t.ActorRoles,
			RequiresApproval: t.RequiresApproval,
			CreatedAt:        t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"transitions": items})
}
