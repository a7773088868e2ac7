// File path: internal/sqlite/writes.go
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// The write surface below serves the orchestrator ingest side and test
// fixtures. The delivery path itself only reads (plus InsertAudit).

// InsertPrincipal stores a new principal row.
func (s *Store) InsertPrincipal(ctx context.Context, principal Principal) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	role := strings.TrimSpace(principal.Role)
	if role == "" {
		role = "operator"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO principals(id, name, role, api_token) VALUES(?, ?, ?, ?)`,
		principal.ID, principal.Name, role, principal.APIToken)
	if err != nil {
		return fmt.Errorf("insert principal: %w", err)
	}
	return nil
}

// InsertProject stores a new project row. Ownership is immutable once set.
func (s *Store) InsertProject(ctx context.Context, project Project) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects(id, name, owner_id) VALUES(?, ?, ?)`,
		project.ID, project.Name, project.OwnerID)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// InsertCollaboration links a principal to a project. Duplicate pairs are
// allowed by the schema; access checks treat any active row as sufficient.
func (s *Store) InsertCollaboration(ctx context.Context, projectID, principalID, status string) (int64, error) {
	if err := s.ensureReady(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(status) == "" {
		status = CollaborationActive
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO collaborations(project_id, principal_id, status) VALUES(?, ?, ?)`,
		projectID, principalID, status)
	if err != nil {
		return 0, fmt.Errorf("insert collaboration: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("collaboration id: %w", err)
	}
	return id, nil
}

// SetCollaborationStatus flips a collaboration between active and revoked.
func (s *Store) SetCollaborationStatus(ctx context.Context, id int64, status string) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE collaborations SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update collaboration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update collaboration: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// InsertRun stores a new run row. ProjectID may be null for detached runs.
func (s *Store) InsertRun(ctx context.Context, run Run) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	status := strings.TrimSpace(run.Status)
	if status == "" {
		status = "pending"
	}
	state := strings.TrimSpace(run.State)
	if state == "" {
		state = "{}"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(id, project_id, status, last_error, state) VALUES(?, ?, ?, ?, ?)`,
		run.ID, run.ProjectID, status, run.LastError, state)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// InsertRunEvent appends an event to a run's history.
func (s *Store) InsertRunEvent(ctx context.Context, event RunEvent) (int64, error) {
	if err := s.ensureReady(); err != nil {
		return 0, err
	}
	payload := strings.TrimSpace(event.Payload)
	if payload == "" {
		payload = "{}"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO run_events(run_id, kind, payload) VALUES(?, ?, ?)`,
		event.RunID, event.Kind, payload)
	if err != nil {
		return 0, fmt.Errorf("insert run event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run event id: %w", err)
	}
	return id, nil
}

// InsertArtifact stores artifact metadata produced by a run.
func (s *Store) InsertArtifact(ctx context.Context, artifact Artifact) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	mime := strings.TrimSpace(artifact.MimeType)
	if mime == "" {
		mime = "application/octet-stream"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts(id, run_id, kind, locator, mime_type, size_bytes, filename)
                VALUES(?, ?, ?, ?, ?, ?, ?)`,
		artifact.ID, artifact.RunID, artifact.Kind, artifact.Locator, mime, artifact.SizeBytes, artifact.Filename)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}
