package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tallybook/internal/domain/ledger"
	"tallybook/internal/ports"
	"tallybook/internal/usecase/dataset"
)

type rawRecordResponse struct {
	RawRecordID      string          `json:"raw_record_id"`
	DatasetVersionID string          `json:"dataset_version_id"`
	Payload          json.RawMessage `json:"payload"`
	FileChecksum     string          `json:"file_checksum,omitempty"`
	LegacyNoChecksum bool            `json:"legacy_no_checksum"`
	CreatedAt        string          `json:"created_at"`
}

func toRawRecordResponse(record ports.RawRecord) rawRecordResponse {
	return rawRecordResponse{
		RawRecordID:      record.RawRecordID,
		DatasetVersionID: record.DatasetVersionID,
		Payload:          json.RawMessage(record.Payload),
		FileChecksum:     record.FileChecksum,
		LegacyNoChecksum: record.LegacyNoChecksum,
		CreatedAt:        record.CreatedAt,
	}
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	version, err := s.datasets.CreateVersion(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"dataset_version_id": version.ID,
		"created_at":         version.CreatedAt,
	})
}

type ingestRequest struct {
	RawRecordID      string          `json:"raw_record_id"`
	Payload          json.RawMessage `json:"payload"`
	FileChecksum     string          `json:"file_checksum"`
	LegacyNoChecksum bool            `json:"legacy_no_checksum"`
}

func (s *Server) handleIngestRawRecord(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, badRequest(err))
		return
	}

	record, err := s.datasets.IngestRawRecord(r.Context(), dataset.IngestInput{
		DatasetVersionID: chi.URLParam(r, "datasetVersionID"),
		RawRecordID:      req.RawRecordID,
		Payload:          []byte(req.Payload),
		FileChecksum:     req.FileChecksum,
		LegacyNoChecksum: req.LegacyNoChecksum,
		Actor:            actorFrom(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRawRecordResponse(record))
}

// readOptionsFrom builds checksum read options from query flags. Strict is
// the default; the incompatible strict+flag_legacy combination is rejected
// by the service before any storage access. A flag value that does not parse
// as a boolean is a client error, never a silent fallback.
func readOptionsFrom(r *http.Request) (ledger.ReadOptions, error) {
	verify, err := queryBool(r, "verify", true)
	if err != nil {
		return ledger.ReadOptions{}, err
	}
	flagLegacy, err := queryBool(r, "flag_legacy", false)
	if err != nil {
		return ledger.ReadOptions{}, err
	}
	strict, err := queryBool(r, "strict", true)
	if err != nil {
		return ledger.ReadOptions{}, err
	}
	return ledger.ReadOptions{
		VerifyChecksums:   verify,
		FlagLegacyMissing: flagLegacy,
		Strict:            strict,
	}, nil
}

func queryBool(r *http.Request, name string, fallback bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest(fmt.Errorf("query flag %s: %q is not a boolean", name, raw))
	}
	return value, nil
}

func (s *Server) handleListRawRecords(w http.ResponseWriter, r *http.Request) {
	opts, err := readOptionsFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := s.datasets.LoadRawRecords(r.Context(), chi.URLParam(r, "datasetVersionID"), opts, actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]rawRecordResponse, 0, len(records))
	for _, record := range records {
		items = append(items, toRawRecordResponse(record))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": items})
}

func (s *Server) handleGetRawRecord(w http.ResponseWriter, r *http.Request) {
	opts, err := readOptionsFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	record, err := s.datasets.LoadRawRecordByID(
		r.Context(),
		chi.URLParam(r, "datasetVersionID"),
		chi.URLParam(r, "rawRecordID"),
		opts,
		actorFrom(r.Context()),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRawRecordResponse(record))
}
