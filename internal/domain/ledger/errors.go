package ledger

import "errors"

// Typed error taxonomy. Every error crossing the service boundary wraps one of
// these sentinels so callers can branch with errors.Is and the API boundary
// can report a stable name.
var (
	ErrDatasetVersionMissing  = errors.New("dataset version id is required")
	ErrDatasetVersionInvalid  = errors.New("dataset version id is invalid")
	ErrDatasetVersionNotFound = errors.New("dataset version not found")
	ErrDatasetVersionMismatch = errors.New("record belongs to a different dataset version")

	ErrChecksumMissing  = errors.New("raw record has no file checksum")
	ErrChecksumMismatch = errors.New("payload checksum does not match file checksum")

	ErrImmutableConflict = errors.New("record already exists with different content")
	ErrMissingEvidence   = errors.New("referenced evidence or finding does not exist")
	ErrRawRecordNotFound = errors.New("raw record not found")
	ErrArtifactNotFound  = errors.New("artifact not found")

	ErrInvalidTransition    = errors.New("no rule allows this state transition")
	ErrMissingPrerequisites = errors.New("actor lacks the role required for this transition")
	ErrWorkflowStateExists  = errors.New("workflow state already exists for entity")
	ErrWorkflowStateMissing = errors.New("workflow state not found for entity")

	ErrEngineDisabled = errors.New("engine is disabled")
	ErrEngineUnknown  = errors.New("engine is not registered")

	ErrConfiguration = errors.New("incompatible option combination")
)

// ErrorName returns the stable taxonomy name for err, or "InternalError" when
// the error is not part of the taxonomy. The name is included in API responses
// for programmatic handling and must never change for a given sentinel.
func ErrorName(err error) string {
	switch {
	case errors.Is(err, ErrDatasetVersionMissing):
		return "DatasetVersionMissing"
	case errors.Is(err, ErrDatasetVersionInvalid):
		return "DatasetVersionInvalid"
	case errors.Is(err, ErrDatasetVersionNotFound):
		return "DatasetVersionNotFound"
	case errors.Is(err, ErrDatasetVersionMismatch):
		return "DatasetVersionMismatchError"
	case errors.Is(err, ErrChecksumMissing):
		return "ChecksumMissingError"
	case errors.Is(err, ErrChecksumMismatch):
		return "ChecksumMismatchError"
	case errors.Is(err, ErrImmutableConflict):
		return "ImmutableConflictError"
	case errors.Is(err, ErrMissingEvidence):
		return "MissingEvidenceError"
	case errors.Is(err, ErrRawRecordNotFound):
		return "RawRecordNotFound"
	case errors.Is(err, ErrArtifactNotFound):
		return "ArtifactNotFound"
	case errors.Is(err, ErrInvalidTransition):
		return "InvalidTransitionError"
	case errors.Is(err, ErrMissingPrerequisites):
		return "MissingPrerequisitesError"
	case errors.Is(err, ErrWorkflowStateExists):
		return "WorkflowStateExists"
	case errors.Is(err, ErrWorkflowStateMissing):
		return "WorkflowStateMissing"
	case errors.Is(err, ErrEngineDisabled):
		return "EngineDisabledError"
	case errors.Is(err, ErrEngineUnknown):
		return "EngineUnknownError"
	case errors.Is(err, ErrConfiguration):
		return "ConfigurationError"
	default:
		return "InternalError"
	}
}
