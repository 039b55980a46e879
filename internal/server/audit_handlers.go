package server

import (
	"net/http"
	"strconv"

	"tallybook/internal/ports"
)

func (s *Server) handleQueryAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := s.audit.Query(r.Context(), ports.AuditFilter{
		DatasetVersionID: r.URL.Query().Get("dataset_version_id"),
		ActionType:       r.URL.Query().Get("action_type"),
		Limit:            limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	type item struct {
		EntryID          uint64 `json:"entry_id"`
		ActorID          string `json:"actor_id"`
		ActorType        string `json:"actor_type"`
		ActionType       string `json:"action_type"`
		ActionLabel      string `json:"action_label"`
		DatasetVersionID string `json:"dataset_version_id,omitempty"`
		Reason           string `json:"reason,omitempty"`
		Context          string `json:"context,omitempty"`
		Status           string `json:"status"`
		ErrorMessage     string `json:"error_message,omitempty"`
		CreatedAt        string `json:"created_at"`
	}
	items := make([]item, 0, len(entries))
	for _, entry := range entries {
		items = append(items, item{
			EntryID:          entry.EntryID,
			ActorID:          entry.ActorID,
			ActorType:        entry.ActorType,
			ActionType:       entry.ActionType,
			ActionLabel:      entry.ActionLabel,
			DatasetVersionID: entry.DatasetVersionID,
			Reason:           entry.Reason,
			Context:          entry.ContextJSON,
			Status:           entry.Status,
			ErrorMessage:     entry.ErrorMessage,
			CreatedAt:        entry.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": items})
}
