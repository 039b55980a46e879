package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tallybook/internal/bootstrap/logging"
	"tallybook/internal/domain/ledger"
	"tallybook/internal/errs"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errInvalidRequest covers malformed request bodies before any typed
// validation runs.
var errInvalidRequest = errors.New("invalid request body")

func badRequest(err error) error {
	return errs.Wrap(errInvalidRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the typed taxonomy onto stable response classes and always
// includes the taxonomy name for programmatic handling.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Error(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Any("err", errs.Loggable(err)))
	}
	name := ledger.ErrorName(err)
	if errors.Is(err, errInvalidRequest) {
		name = "InvalidRequest"
	}
	writeJSON(w, status, errorBody{
		Error:   name,
		Message: err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrDatasetVersionMissing),
		errors.Is(err, ledger.ErrDatasetVersionInvalid),
		errors.Is(err, ledger.ErrConfiguration),
		errors.Is(err, errInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrDatasetVersionNotFound),
		errors.Is(err, ledger.ErrRawRecordNotFound),
		errors.Is(err, ledger.ErrArtifactNotFound),
		errors.Is(err, ledger.ErrMissingEvidence),
		errors.Is(err, ledger.ErrWorkflowStateMissing),
		errors.Is(err, ledger.ErrEngineUnknown):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrImmutableConflict),
		errors.Is(err, ledger.ErrDatasetVersionMismatch),
		errors.Is(err, ledger.ErrInvalidTransition),
		errors.Is(err, ledger.ErrWorkflowStateExists):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrMissingPrerequisites):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrChecksumMissing),
		errors.Is(err, ledger.ErrChecksumMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrEngineDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
