// File path: internal/sqlite/types.go
package sqlite

import (
	"database/sql"
	"time"
)

// Collaboration statuses. Only active rows grant access.
const (
	CollaborationActive  = "active"
	CollaborationRevoked = "revoked"
)

// Principal is an authenticated actor row in the catalog.
type Principal struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Role      string    `db:"role"`
	APIToken  string    `db:"api_token"`
	CreatedAt time.Time `db:"created_at"`
}

// Project is owned by exactly one principal; ownership is immutable.
type Project struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	OwnerID   string    `db:"owner_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Collaboration links a principal to a project. Duplicate (project,
// principal) rows are tolerated; any active row is sufficient.
type Collaboration struct {
	ID          int64     `db:"id"`
	ProjectID   string    `db:"project_id"`
	PrincipalID string    `db:"principal_id"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
}

// Run is an orchestrator execution. A run without a project id is never
// visible through the gateway.
type Run struct {
	ID        string         `db:"id"`
	ProjectID sql.NullString `db:"project_id"`
	Status    string         `db:"status"`
	LastError sql.NullString `db:"last_error"`
	State     string         `db:"state"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// RunEvent is an append-only record emitted during a run.
type RunEvent struct {
	ID        int64     `db:"id"`
	RunID     string    `db:"run_id"`
	Kind      string    `db:"kind"`
	Payload   string    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

// Artifact is a stored output of a run. Locator is an opaque string
// classified by scheme prefix at the data boundary.
type Artifact struct {
	ID        string    `db:"id"`
	RunID     string    `db:"run_id"`
	Kind      string    `db:"kind"`
	Locator   string    `db:"locator"`
	MimeType  string    `db:"mime_type"`
	SizeBytes int64     `db:"size_bytes"`
	Filename  string    `db:"filename"`
	CreatedAt time.Time `db:"created_at"`
}

// AuditEvent records a delivery decision for operators.
type AuditEvent struct {
	ID          string         `db:"id"`
	PrincipalID string         `db:"principal_id"`
	ArtifactID  sql.NullString `db:"artifact_id"`
	RunID       sql.NullString `db:"run_id"`
	Action      string         `db:"action"`
	Outcome     string         `db:"outcome"`
	Reason      sql.NullString `db:"reason"`
	CreatedAt   time.Time      `db:"created_at"`
}
