// File path: internal/sqlite/store_test.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func seedPrincipal(t *testing.T, store *Store, id, role, token string) {
	t.Helper()
	err := store.InsertPrincipal(context.Background(), Principal{ID: id, Name: id, Role: role, APIToken: token})
	if err != nil {
		t.Fatalf("insert principal %s: %v", id, err)
	}
}

func TestOpenMigratesIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	if _, err := store.ListProjects(context.Background()); err != nil {
		t.Fatalf("list projects after reopen: %v", err)
	}
}

func TestPrincipalByToken(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedPrincipal(t, store, "p1", "operator", "tok-p1")

	principal, err := store.PrincipalByToken(ctx, "tok-p1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if principal.ID != "p1" || principal.Role != "operator" {
		t.Fatalf("unexpected principal: %+v", principal)
	}

	if _, err := store.PrincipalByToken(ctx, "tok-unknown"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows for unknown token, got %v", err)
	}
	if _, err := store.PrincipalByToken(ctx, "   "); err == nil {
		t.Fatal("expected error for blank token")
	}
}

func TestCollaborationLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedPrincipal(t, store, "owner", "operator", "tok-owner")
	seedPrincipal(t, store, "partner", "operator", "tok-partner")
	if err := store.InsertProject(ctx, Project{ID: "proj", Name: "proj", OwnerID: "owner"}); err != nil {
		t.Fatalf("insert project: %v", err)
	}

	active, err := store.HasActiveCollaboration(ctx, "proj", "partner")
	if err != nil {
		t.Fatalf("initial check: %v", err)
	}
	if active {
		t.Fatal("expected no collaboration yet")
	}

	id, err := store.InsertCollaboration(ctx, "proj", "partner", "")
	if err != nil {
		t.Fatalf("insert collaboration: %v", err)
	}
	if active, _ = store.HasActiveCollaboration(ctx, "proj", "partner"); !active {
		t.Fatal("expected active collaboration after insert")
	}

	if err := store.SetCollaborationStatus(ctx, id, CollaborationRevoked); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if active, _ = store.HasActiveCollaboration(ctx, "proj", "partner"); active {
		t.Fatal("expected revoked collaboration to stop counting")
	}

	if err := store.SetCollaborationStatus(ctx, id, CollaborationActive); err != nil {
		t.Fatalf("reinstate: %v", err)
	}
	if active, _ = store.HasActiveCollaboration(ctx, "proj", "partner"); !active {
		t.Fatal("expected reinstated collaboration to count again")
	}

	if err := store.SetCollaborationStatus(ctx, 9999, CollaborationRevoked); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows for unknown collaboration, got %v", err)
	}
}

func TestProjectIDsForPrincipalKeepsDuplicates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedPrincipal(t, store, "owner", "operator", "tok-owner")
	if err := store.InsertProject(ctx, Project{ID: "proj", Name: "proj", OwnerID: "owner"}); err != nil {
		t.Fatalf("insert project: %v", err)
	}
	// Owner who also collaborates on their own project appears twice.
	if _, err := store.InsertCollaboration(ctx, "proj", "owner", CollaborationActive); err != nil {
		t.Fatalf("insert collaboration: %v", err)
	}

	ids, err := store.ProjectIDsForPrincipal(ctx, "owner")
	if err != nil {
		t.Fatalf("project ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected duplicate project ids, got %v", ids)
	}
	for _, id := range ids {
		if id != "proj" {
			t.Fatalf("unexpected project id %q", id)
		}
	}
}

func TestRunsAndEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedPrincipal(t, store, "owner", "operator", "tok-owner")
	if err := store.InsertProject(ctx, Project{ID: "proj", Name: "proj", OwnerID: "owner"}); err != nil {
		t.Fatalf("insert project: %v", err)
	}
	run := Run{
		ID:        "run-1",
		ProjectID: sql.NullString{String: "proj", Valid: true},
		Status:    "running",
		State:     `{"stepCount":2,"maxSteps":10}`,
	}
	if err := store.InsertRun(ctx, run); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if err := store.InsertRun(ctx, Run{ID: "run-detached"}); err != nil {
		t.Fatalf("insert detached run: %v", err)
	}

	loaded, err := store.RunByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("run lookup: %v", err)
	}
	if !loaded.ProjectID.Valid || loaded.ProjectID.String != "proj" {
		t.Fatalf("unexpected project id: %+v", loaded.ProjectID)
	}
	detached, err := store.RunByID(ctx, "run-detached")
	if err != nil {
		t.Fatalf("detached run lookup: %v", err)
	}
	if detached.ProjectID.Valid {
		t.Fatal("expected null project id on detached run")
	}
	if detached.Status != "pending" || detached.State != "{}" {
		t.Fatalf("unexpected detached run defaults: %+v", detached)
	}

	for i := 0; i < 4; i++ {
		if _, err := store.InsertRunEvent(ctx, RunEvent{RunID: "run-1", Kind: "message"}); err != nil {
			t.Fatalf("insert event %d: %v", i, err)
		}
	}
	events, err := store.RecentEvents(ctx, "run-1", 3)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	// Newest first; ids break ties within the same timestamp.
	for i := 1; i < len(events); i++ {
		if events[i-1].ID < events[i].ID {
			t.Fatalf("events out of order: %d before %d", events[i-1].ID, events[i].ID)
		}
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedPrincipal(t, store, "owner", "operator", "tok-owner")
	if err := store.InsertProject(ctx, Project{ID: "proj", Name: "proj", OwnerID: "owner"}); err != nil {
		t.Fatalf("insert project: %v", err)
	}
	if err := store.InsertRun(ctx, Run{ID: "run-1", ProjectID: sql.NullString{String: "proj", Valid: true}}); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	artifact := Artifact{
		ID:        "art-1",
		RunID:     "run-1",
		Kind:      "report",
		Locator:   "run-1/report.txt",
		SizeBytes: 42,
		Filename:  "report.txt",
	}
	if err := store.InsertArtifact(ctx, artifact); err != nil {
		t.Fatalf("insert artifact: %v", err)
	}

	loaded, err := store.ArtifactByID(ctx, "art-1")
	if err != nil {
		t.Fatalf("artifact lookup: %v", err)
	}
	if loaded.Locator != "run-1/report.txt" {
		t.Fatalf("unexpected locator %q", loaded.Locator)
	}
	if loaded.MimeType != "application/octet-stream" {
		t.Fatalf("expected mime default, got %q", loaded.MimeType)
	}
	if _, err := store.ArtifactByID(ctx, "nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestAuditTrail(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	events := []AuditEvent{
		{ID: "ev-1", PrincipalID: "p1", Action: "artifact_download", Outcome: "denied",
			ArtifactID: sql.NullString{String: "art-1", Valid: true},
			Reason:     sql.NullString{String: "access_denied", Valid: true}},
		{ID: "ev-2", PrincipalID: "p1", Action: "live_state", Outcome: "projected",
			RunID: sql.NullString{String: "run-1", Valid: true}},
	}
	for _, event := range events {
		if err := store.InsertAudit(ctx, event); err != nil {
			t.Fatalf("insert audit %s: %v", event.ID, err)
		}
	}

	stored, err := store.AuditEventsForPrincipal(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("audit lookup: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(stored))
	}
	var denied *AuditEvent
	for i := range stored {
		if stored[i].ID == "ev-1" {
			denied = &stored[i]
		}
	}
	if denied == nil {
		t.Fatal("denied event missing")
	}
	if !denied.Reason.Valid || denied.Reason.String != "access_denied" {
		t.Fatalf("unexpected reason: %+v", denied.Reason)
	}
	if denied.RunID.Valid {
		t.Fatal("expected null run id on artifact-only event")
	}
}
