// File path: internal/access/verifier_test.go
package access

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchbase/opsgate/internal/identity"
	"github.com/launchbase/opsgate/internal/sqlite"
)

type fakeCatalog struct {
	projects       map[string]*sqlite.Project
	collaborations map[string][]string // projectID -> principal ids with an active row
	projectErr     error
	collabErr      error
	listErr        error
}

func (f *fakeCatalog) ProjectByID(ctx context.Context, projectID string) (*sqlite.Project, error) {
	if f.projectErr != nil {
		return nil, f.projectErr
	}
	project, ok := f.projects[projectID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return project, nil
}

func (f *fakeCatalog) HasActiveCollaboration(ctx context.Context, projectID, principalID string) (bool, error) {
	if f.collabErr != nil {
		return false, f.collabErr
	}
	for _, id := range f.collaborations[projectID] {
		if id == principalID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCatalog) ListProjects(ctx context.Context) ([]sqlite.Project, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]sqlite.Project, 0, len(f.projects))
	for _, project := range f.projects {
		out = append(out, *project)
	}
	return out, nil
}

func (f *fakeCatalog) ProjectIDsForPrincipal(ctx context.Context, principalID string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var ids []string
	for id, project := range f.projects {
		if project.OwnerID == principalID {
			ids = append(ids, id)
		}
	}
	for projectID, principals := range f.collaborations {
		for _, id := range principals {
			if id == principalID {
				ids = append(ids, projectID)
			}
		}
	}
	return ids, nil
}

var (
	admin    = identity.Principal{ID: "root", Role: identity.RoleAdmin}
	owner    = identity.Principal{ID: "owner-1", Role: identity.RoleOperator}
	partner  = identity.Principal{ID: "partner-1", Role: identity.RoleOperator}
	stranger = identity.Principal{ID: "stranger-1", Role: identity.RoleOperator}
)

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		projects: map[string]*sqlite.Project{
			"proj-1": {ID: "proj-1", OwnerID: "owner-1"},
		},
		collaborations: map[string][]string{
			"proj-1": {"partner-1"},
		},
	}
}

func TestVerifyPrecedence(t *testing.T) {
	verifier := NewVerifier(newFakeCatalog())
	ctx := context.Background()

	assert.True(t, verifier.Verify(ctx, admin, "proj-1"), "admin always allowed")
	assert.True(t, verifier.Verify(ctx, owner, "proj-1"), "owner allowed")
	assert.True(t, verifier.Verify(ctx, partner, "proj-1"), "active collaborator allowed")
	assert.False(t, verifier.Verify(ctx, stranger, "proj-1"), "unrelated principal denied")
}

func TestVerifyUnknownProjectDenied(t *testing.T) {
	verifier := NewVerifier(newFakeCatalog())
	assert.False(t, verifier.Verify(context.Background(), admin, ""), "empty project id denied even for admin")
	assert.False(t, verifier.Verify(context.Background(), owner, "missing"))
}

func TestVerifyCollaborationToggle(t *testing.T) {
	catalog := newFakeCatalog()
	verifier := NewVerifier(catalog)
	ctx := context.Background()

	require.True(t, verifier.Verify(ctx, partner, "proj-1"))

	// Revoking the collaboration flips the decision.
	catalog.collaborations["proj-1"] = nil
	assert.False(t, verifier.Verify(ctx, partner, "proj-1"))

	// Reinstating it flips it back.
	catalog.collaborations["proj-1"] = []string{"partner-1"}
	assert.True(t, verifier.Verify(ctx, partner, "proj-1"))
}

func TestVerifyFailsClosedOnStoreErrors(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.projectErr = errors.New("store unreachable")
	verifier := NewVerifier(catalog)
	assert.False(t, verifier.Verify(context.Background(), owner, "proj-1"))

	catalog = newFakeCatalog()
	catalog.collabErr = errors.New("store unreachable")
	verifier = NewVerifier(catalog)
	assert.False(t, verifier.Verify(context.Background(), partner, "proj-1"),
		"collaboration lookup failure denies instead of erroring")
	assert.True(t, verifier.Verify(context.Background(), admin, "proj-1"),
		"admin short-circuits before any lookup")
}

func TestVerifyOwnership(t *testing.T) {
	verifier := NewVerifier(newFakeCatalog())
	ctx := context.Background()

	assert.True(t, verifier.VerifyOwnership(ctx, admin, "proj-1"))
	assert.True(t, verifier.VerifyOwnership(ctx, owner, "proj-1"))
	assert.False(t, verifier.VerifyOwnership(ctx, partner, "proj-1"), "collaborators lack write-level trust")
	assert.False(t, verifier.VerifyOwnership(ctx, stranger, "proj-1"))
}

func TestListAccessibleProjects(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.projects["proj-2"] = &sqlite.Project{ID: "proj-2", OwnerID: "someone-else"}
	verifier := NewVerifier(catalog)
	ctx := context.Background()

	all, err := verifier.ListAccessibleProjects(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := verifier.ListAccessibleProjects(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []string{"proj-1"}, mine)

	theirs, err := verifier.ListAccessibleProjects(ctx, partner)
	require.NoError(t, err)
	assert.Equal(t, []string{"proj-1"}, theirs)
}

func TestListAccessibleProjectsMayContainDuplicates(t *testing.T) {
	catalog := newFakeCatalog()
	// An owner who also holds a collaboration row on their own project.
	catalog.collaborations["proj-1"] = append(catalog.collaborations["proj-1"], "owner-1")
	verifier := NewVerifier(catalog)

	ids, err := verifier.ListAccessibleProjects(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, []string{"proj-1", "proj-1"}, ids, "duplicates are permitted by contract")
}
