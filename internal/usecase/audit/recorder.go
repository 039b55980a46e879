// Package audit appends one outcome entry per mutating ledger call and
// serves the read-only audit query API.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"tallybook/internal/bootstrap/logging"
	"tallybook/internal/errs"
	"tallybook/internal/ports"
)

type Recorder struct {
	repo ports.AuditRepository
}

func NewRecorder(repo ports.AuditRepository) *Recorder {
	return &Recorder{repo: repo}
}

// Action describes the mutating call being audited.
type Action struct {
	Actor            ports.Actor
	Type             string
	Label            string
	DatasetVersionID string
	Reason           string
	Context          map[string]any
}

// Record appends the outcome entry for a finished call. It runs outside the
// call's transaction so a rolled-back write still leaves its error trace, and
// it is deliberately best-effort: a failed append is logged, never allowed to
// fail an otherwise committed call. A nil recorder records nothing (tests).
func (r *Recorder) Record(ctx context.Context, action Action, callErr error) {
	if r == nil || r.repo == nil {
		return
	}

	actor := action.Actor
	if strings.TrimSpace(actor.ID) == "" {
		actor = ports.SystemActor("")
	}
	if actor.Type == "" {
		actor.Type = "user"
	}

	status := "ok"
	errMsg := ""
	if callErr != nil {
		status = "error"
		errMsg = callErr.Error()
	}

	contextJSON := ""
	if len(action.Context) > 0 {
		raw, err := json.Marshal(action.Context)
		if err == nil {
			contextJSON = string(raw)
		}
	}

	entry := ports.AuditEntry{
		ActorID:          actor.ID,
		ActorType:        actor.Type,
		ActionType:       action.Type,
		ActionLabel:      action.Label,
		DatasetVersionID: action.DatasetVersionID,
		Reason:           action.Reason,
		ContextJSON:      contextJSON,
		Status:           status,
		ErrorMessage:     errMsg,
		CreatedAt:        time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := r.repo.AppendEntry(ctx, entry); err != nil {
		logging.Error(ctx, "audit append failed",
			slog.String("action_type", action.Type),
			slog.Any("err", errs.Loggable(err)))
	}
}

// Query serves the read-only audit API, filterable by dataset version and
// action type.
func (r *Recorder) Query(ctx context.Context, filter ports.AuditFilter) ([]ports.AuditEntry, error) {
	return r.repo.QueryEntries(ctx, filter)
}
