// File path: internal/sqlite/queries.go
package sqlite

import (
	"context"
	"fmt"
	"strings"
)

// PrincipalByToken resolves an API token to a principal row.
func (s *Store) PrincipalByToken(ctx context.Context, token string) (*Principal, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("api token required")
	}
	var principal Principal
	if err := s.db.GetContext(ctx, &principal, `SELECT * FROM principals WHERE api_token = ?`, token); err != nil {
		return nil, err
	}
	return &principal, nil
}

// ProjectByID retrieves a single project row.
func (s *Store) ProjectByID(ctx context.Context, projectID string) (*Project, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var project Project
	if err := s.db.GetContext(ctx, &project, `SELECT * FROM projects WHERE id = ?`, projectID); err != nil {
		return nil, err
	}
	return &project, nil
}

// HasActiveCollaboration reports whether any active collaboration row links
// the principal to the project. Duplicate rows are tolerated.
func (s *Store) HasActiveCollaboration(ctx context.Context, projectID, principalID string) (bool, error) {
	if err := s.ensureReady(); err != nil {
		return false, err
	}
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(1) FROM collaborations WHERE project_id = ? AND principal_id = ? AND status = ?`,
		projectID, principalID, CollaborationActive)
	if err != nil {
		return false, fmt.Errorf("select collaborations: %w", err)
	}
	return count > 0, nil
}

// ListProjects returns every project ordered by name.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	projects := []Project{}
	if err := s.db.SelectContext(ctx, &projects, `SELECT * FROM projects ORDER BY name`); err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}
	return projects, nil
}

// ProjectIDsForPrincipal returns the ids of projects the principal owns or
// actively collaborates on. Duplicates are permitted; callers must not
// assume uniqueness.
func (s *Store) ProjectIDsForPrincipal(ctx context.Context, principalID string) ([]string, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	ids := []string{}
	err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM projects WHERE owner_id = ?
                UNION ALL
                SELECT project_id FROM collaborations WHERE principal_id = ? AND status = ?`,
		principalID, principalID, CollaborationActive)
	if err != nil {
		return nil, fmt.Errorf("select accessible projects: %w", err)
	}
	return ids, nil
}

// RunByID retrieves a single run row.
func (s *Store) RunByID(ctx context.Context, runID string) (*Run, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var run Run
	if err := s.db.GetContext(ctx, &run, `SELECT * FROM runs WHERE id = ?`, runID); err != nil {
		return nil, err
	}
	return &run, nil
}

// ArtifactByID retrieves a single artifact row.
func (s *Store) ArtifactByID(ctx context.Context, artifactID string) (*Artifact, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := s.db.GetContext(ctx, &artifact, `SELECT * FROM artifacts WHERE id = ?`, artifactID); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// RecentEvents returns the newest events for a run, newest first.
func (s *Store) RecentEvents(ctx context.Context, runID string, limit int) ([]RunEvent, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	events := []RunEvent{}
	err := s.db.SelectContext(ctx, &events,
		`SELECT * FROM run_events WHERE run_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		runID, limit)
	if err != nil {
		return nil, fmt.Errorf("select run events: %w", err)
	}
	return events, nil
}

// InsertAudit appends a delivery audit record. This is the only write the
// gateway performs on the request path.
func (s *Store) InsertAudit(ctx context.Context, event AuditEvent) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events(id, principal_id, artifact_id, run_id, action, outcome, reason)
                VALUES(?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.PrincipalID, event.ArtifactID, event.RunID, event.Action, event.Outcome, event.Reason)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// AuditEventsForPrincipal returns recorded decisions for one principal,
// newest first. Operator tooling only; not on the request path.
func (s *Store) AuditEventsForPrincipal(ctx context.Context, principalID string, limit int) ([]AuditEvent, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	events := []AuditEvent{}
	err := s.db.SelectContext(ctx, &events,
		`SELECT * FROM audit_events WHERE principal_id = ? ORDER BY created_at DESC LIMIT ?`,
		principalID, limit)
	if err != nil {
		return nil, fmt.Errorf("select audit events: %w", err)
	}
	return events, nil
}
