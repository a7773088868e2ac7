// File path: internal/livestate/projector.go
package livestate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/launchbase/opsgate/internal/audit"
	"github.com/launchbase/opsgate/internal/common"
	"github.com/launchbase/opsgate/internal/common/telemetry"
	"github.com/launchbase/opsgate/internal/config"
	"github.com/launchbase/opsgate/internal/identity"
	"github.com/launchbase/opsgate/internal/ratelimit"
	"github.com/launchbase/opsgate/internal/sqlite"
)

const recentEventLimit = 10

var (
	ErrNotFound  = errors.New("run not available")
	ErrDenied    = errors.New("run access denied")
	ErrThrottled = errors.New("poll budget exhausted")
)

// Catalog is the slice of the metadata store the projector reads.
type Catalog interface {
	RunByID(ctx context.Context, runID string) (*sqlite.Run, error)
	RecentEvents(ctx context.Context, runID string, limit int) ([]sqlite.RunEvent, error)
}

// AccessVerifier decides project-level read access.
type AccessVerifier interface {
	Verify(ctx context.Context, principal identity.Principal, projectID string) bool
}

// ToolInvocation is the most recent tool call observed in a run's events.
type ToolInvocation struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// LiveState is an ephemeral view derived from stored run state and events.
// Producing it mutates nothing.
type LiveState struct {
	RunID            string          `json:"run_id"`
	Status           string          `json:"status"`
	Step             int             `json:"step"`
	MaxSteps         int             `json:"max_steps"`
	BudgetRemaining  float64         `json:"budget_remaining"`
	LastTool         *ToolInvocation `json:"last_tool,omitempty"`
	LastError        string          `json:"last_error,omitempty"`
	LastActivity     time.Time       `json:"last_activity"`
	AwaitingApproval bool            `json:"awaiting_approval"`
}

// Projector derives run status views for polling operators. Each call
// charges one unit from the polling rate-limit scope before touching the
// catalog.
type Projector struct {
	catalog  Catalog
	verifier AccessVerifier
	limiter  *ratelimit.Limiter
	recorder *audit.Recorder
	rule     config.LimitRule
}

// NewProjector constructs a Projector with the polling scope threshold.
func NewProjector(catalog Catalog, verifier AccessVerifier, limiter *ratelimit.Limiter, recorder *audit.Recorder, rule config.LimitRule) *Projector {
	return &Projector{
		catalog:  catalog,
		verifier: verifier,
		limiter:  limiter,
		recorder: recorder,
		rule:     rule,
	}
}

// GetLiveState returns the derived view for a run. The throttle decision is
// returned on every path so callers can emit rate-limit headers.
func (p *Projector) GetLiveState(ctx context.Context, runID string, principal identity.Principal) (*LiveState, ratelimit.Decision, error) {
	decision := p.limiter.Check(ctx, ratelimit.Key("poll", principal.ID), p.rule.Max, p.rule.Window)
	if !decision.Allowed {
		return nil, decision, ErrThrottled
	}

	run, err := p.catalog.RunByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			p.recorder.Record(ctx, principal.ID, "", runID, "live_state", audit.OutcomeNotFound, "")
			return nil, decision, ErrNotFound
		}
		common.Logger().Warn("livestate: run lookup failed, denying", "run", runID, "error", err)
		p.recorder.Record(ctx, principal.ID, "", runID, "live_state", audit.OutcomeDenied, audit.ReasonAccessDenied)
		return nil, decision, ErrDenied
	}
	if !run.ProjectID.Valid || strings.TrimSpace(run.ProjectID.String) == "" {
		p.recorder.Record(ctx, principal.ID, "", run.ID, "live_state", audit.OutcomeDenied, audit.ReasonUnattachedRun)
		return nil, decision, ErrDenied
	}
	if !p.verifier.Verify(ctx, principal, run.ProjectID.String) {
		p.recorder.Record(ctx, principal.ID, "", run.ID, "live_state", audit.OutcomeDenied, audit.ReasonAccessDenied)
		return nil, decision, ErrDenied
	}

	events, err := p.catalog.RecentEvents(ctx, run.ID, recentEventLimit)
	if err != nil {
		common.Logger().Warn("livestate: event lookup failed, denying", "run", run.ID, "error", err)
		p.recorder.Record(ctx, principal.ID, "", run.ID, "live_state", audit.OutcomeDenied, audit.ReasonAccessDenied)
		return nil, decision, ErrDenied
	}

	state := project(run, events)
	p.recorder.Record(ctx, principal.ID, "", run.ID, "live_state", audit.OutcomeProjected, "")
	telemetry.RecordLiveState()
	return state, decision, nil
}

type stateBlob struct {
	StepCount int `json:"stepCount"`
	MaxSteps  int `json:"maxSteps"`
}

type toolCallPayload struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func project(run *sqlite.Run, events []sqlite.RunEvent) *LiveState {
	var blob stateBlob
	if err := json.Unmarshal([]byte(run.State), &blob); err != nil {
		common.Logger().Debug("livestate: unreadable state blob", "run", run.ID, "error", err)
	}

	state := &LiveState{
		RunID:            run.ID,
		Status:           run.Status,
		Step:             blob.StepCount,
		MaxSteps:         blob.MaxSteps,
		BudgetRemaining:  budgetRemaining(blob.StepCount, blob.MaxSteps),
		LastActivity:     time.Now().UTC(),
		AwaitingApproval: run.Status == "awaiting_approval",
	}
	if run.LastError.Valid {
		state.LastError = run.LastError.String
	}
	if len(events) > 0 {
		state.LastActivity = events[0].CreatedAt.UTC()
	}
	for _, event := range events {
		if event.Kind != "tool_call" {
			continue
		}
		var payload toolCallPayload
		if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
			common.Logger().Debug("livestate: unreadable tool_call payload", "run", run.ID, "event", event.ID, "error", err)
			break
		}
		state.LastTool = &ToolInvocation{Name: payload.Name, Arguments: payload.Arguments}
		break
	}
	return state
}

func budgetRemaining(step, maxSteps int) float64 {
	if maxSteps <= 0 {
		return 0
	}
	remaining := 1 - float64(step)/float64(maxSteps)
	if remaining < 0 {
		return 0
	}
	return remaining
}
