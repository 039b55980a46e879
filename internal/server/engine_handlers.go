package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tallybook/internal/ports"
	"tallybook/internal/usecase/evidence"
)

type evidenceResponse struct {
	EvidenceID       string          `json:"evidence_id"`
	DatasetVersionID string          `json:"dataset_version_id"`
	Kind             string          `json:"kind"`
	Payload          json.RawMessage `json:"payload"`
	CreatedAt        string          `json:"created_at"`
}

func toEvidenceResponse(record ports.EvidenceRecord) evidenceResponse {
	return evidenceResponse{
		EvidenceID:       record.EvidenceID,
		DatasetVersionID: record.DatasetVersionID,
		Kind:             record.Kind,
		Payload:          json.RawMessage(record.Payload),
		CreatedAt:        record.CreatedAt,
	}
}

type findingResponse struct {
	FindingID        string          `json:"finding_id"`
	DatasetVersionID string          `json:"dataset_version_id"`
	RawRecordID      string          `json:"raw_record_id"`
	Kind             string          `json:"kind"`
	Payload          json.RawMessage `json:"payload"`
	CreatedAt        string          `json:"created_at"`
	EvidenceIDs      []string        `json:"evidence_ids,omitempty"`
}

type createEvidenceRequest struct {
	EvidenceID       string          `json:"evidence_id"`
	DatasetVersionID string          `json:"dataset_version_id"`
	Kind             string          `json:"kind"`
	StableKey        string          `json:"stable_key"`
	Payload          json.RawMessage `json:"payload"`
	CreatedAt        string          `json:"created_at"`
}

func (s *Server) handleCreateEvidence(w http.ResponseWriter, r *http.Request) {
	var req createEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, badRequest(err))
		return
	}

	record, err := s.evidence.CreateEvidence(r.Context(), evidence.CreateEvidenceInput{
		EvidenceID:       req.EvidenceID,
		DatasetVersionID: req.DatasetVersionID,
		EngineID:         engineFrom(r.Context()),
		Kind:             req.Kind,
		StableKey:        req.StableKey,
		Payload:          []byte(req.Payload),
		CreatedAt:        req.CreatedAt,
		Actor:            actorFrom(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEvidenceResponse(record))
}

func (s *Server) handleListEvidence(w http.ResponseWriter, r *http.Request) {
	datasetVersionID := r.URL.Query().Get("dataset_version_id")

	var (
		records []ports.EvidenceRecord
		err     error
	)
	if ids := splitIDs(r.URL.Query().Get("ids")); len(ids) > 0 {
		records, err = s.evidence.GetEvidenceByIDs(r.Context(), datasetVersionID, ids)
	} else {
		records, err = s.evidence.ListEvidence(r.Context(), datasetVersionID)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]evidenceResponse, 0, len(records))
	for _, record := range records {
		items = append(items, toEvidenceResponse(record))
	}
	writeJSON(w, http.StatusOK, map[string]any{"evidence": items})
}

type createFindingRequest struct {
	FindingID        string          `json:"finding_id"`
	DatasetVersionID string          `json:"dataset_version_id"`
	RawRecordID      string          `json:"raw_record_id"`
	Kind             string          `json:"kind"`
	StableKey        string          `json:"stable_key"`
	Payload          json.RawMessage `json:"payload"`
	CreatedAt        string          `json:"created_at"`
}

func (s *Server) handleCreateFinding(w http.ResponseWriter, r *http.Request) {
	var req createFindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, badRequest(err))
		return
	}

	record, err := s.evidence.CreateFinding(r.Context(), evidence.CreateFindingInput{
		FindingID:        req.FindingID,
		DatasetVersionID: req.DatasetVersionID,
		EngineID:         engineFrom(r.Context()),
		RawRecordID:      req.RawRecordID,
		Kind:             req.Kind,
		StableKey:        req.StableKey,
		Payload:          []byte(req.Payload),
		CreatedAt:        req.CreatedAt,
		Actor:            actorFrom(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, findingResponse{
		FindingID:        record.FindingID,
		DatasetVersionID: record.DatasetVersionID,
		RawRecordID:      record.RawRecordID,
		Kind:             record.Kind,
		Payload:          json.RawMessage(record.Payload),
		CreatedAt:        record.CreatedAt,
	})
}

func (s *Server) handleListFindings(w http.ResponseWriter, r *http.Request) {
	findings, err := s.evidence.ListFindings(r.Context(), r.URL.Query().Get("dataset_version_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]findingResponse, 0, len(findings))
	for _, finding := range findings {
		items = append(items, findingResponse{
			FindingID:        finding.FindingID,
			DatasetVersionID: finding.DatasetVersionID,
			RawRecordID:      finding.RawRecordID,
			Kind:             finding.Kind,
			Payload:          json.RawMessage(finding.Payload),
			CreatedAt:        finding.CreatedAt,
			EvidenceIDs:      finding.EvidenceIDs,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"findings": items})
}

type createLinkRequest struct {
	LinkID     string `json:"link_id"`
	FindingID  string `json:"finding_id"`
	EvidenceID string `json:"evidence_id"`
}

func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, badRequest(err))
		return
	}

	link, err := s.evidence.LinkFindingToEvidence(r.Context(), evidence.LinkInput{
		LinkID:     req.LinkID,
		FindingID:  req.FindingID,
		EvidenceID: req.EvidenceID,
		Actor:      actorFrom(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"link_id":     link.LinkID,
		"finding_id":  link.FindingID,
		"evidence_id": link.EvidenceID,
		"created_at":  link.CreatedAt,
	})
}

func (s *Server) handlePutArtifact(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, badRequest(err))
		return
	}

	info, err := s.artifacts.Put(r.Context(), content, r.Header.Get("Content-Type"), actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"key":          info.Key,
		"sha256":       info.SHA256,
		"size":         info.Size,
		"content_type": info.ContentType,
	})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	stored, err := s.artifacts.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(stored.Content)
}

func splitIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
