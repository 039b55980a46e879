package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListEngines(w http.ResponseWriter, r *http.Request) {
	type item struct {
		ID          string   `json:"id"`
		Enabled     bool     `json:"enabled"`
		OwnedTables []string `json:"owned_tables,omitempty"`
		Routes      []string `json:"routes,omitempty"`
	}

	specs := s.registry.Snapshot()
	items := make([]item, 0, len(specs))
	for _, spec := range specs {
		items = append(items, item{
			ID:          spec.ID,
			Enabled:     spec.Enabled,
			OwnedTables: spec.OwnedTables,
			Routes:      spec.Routes,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"engines": items})
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetEngineEnabled(w http.ResponseWriter, r *http.Request) {
	var req setEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, badRequest(err))
		return
	}

	engineID := chi.URLParam(r, "engine")
	if err := s.registry.SetEnabled(engineID, req.Enabled); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": engineID, "enabled": req.Enabled})
}
