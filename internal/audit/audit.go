// File path: internal/audit/audit.go
package audit

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/launchbase/opsgate/internal/common"
	"github.com/launchbase/opsgate/internal/sqlite"
)

// Resolution outcomes recorded for every protected read.
const (
	OutcomeStreamed   = "streamed"
	OutcomeRedirected = "redirected"
	OutcomeProjected  = "projected"
	OutcomeNotFound   = "not_found"
	OutcomeDenied     = "denied"
)

// Internal denial reasons. Externally these collapse to one status; the
// audit trail keeps them distinct for operators.
const (
	ReasonAccessDenied  = "access_denied"
	ReasonUnattachedRun = "unattached_run"
	ReasonPathEscape    = "path_escape"
)

// Sink is the slice of the catalog the recorder writes to.
type Sink interface {
	InsertAudit(ctx context.Context, event sqlite.AuditEvent) error
}

// Recorder persists delivery decisions. A failed write is logged and
// swallowed: auditing must never fail the request it describes.
type Recorder struct {
	sink Sink
}

// NewRecorder constructs a Recorder over the given sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Record writes one audit event. artifactID, runID and reason may be empty.
func (r *Recorder) Record(ctx context.Context, principalID, artifactID, runID, action, outcome, reason string) {
	logger := common.Logger()
	if r == nil || r.sink == nil {
		logger.Warn("audit: recorder not configured", "action", action, "outcome", outcome)
		return
	}
	event := sqlite.AuditEvent{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		ArtifactID:  nullable(artifactID),
		RunID:       nullable(runID),
		Action:      action,
		Outcome:     outcome,
		Reason:      nullable(reason),
	}
	if err := r.sink.InsertAudit(ctx, event); err != nil {
		logger.Error("audit: write failed", "action", action, "outcome", outcome, "error", err)
		return
	}
	logger.Debug("audit: recorded",
		"principal", principalID, "artifact", artifactID, "run", runID,
		"action", action, "outcome", outcome, "reason", reason)
}

func nullable(value string) sql.NullString {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: trimmed, Valid: true}
}
