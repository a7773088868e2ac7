// File path: internal/access/verifier.go
package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/launchbase/opsgate/internal/common"
	"github.com/launchbase/opsgate/internal/identity"
	"github.com/launchbase/opsgate/internal/sqlite"
)

// Catalog is the slice of the metadata store the verifier reads.
type Catalog interface {
	ProjectByID(ctx context.Context, projectID string) (*sqlite.Project, error)
	HasActiveCollaboration(ctx context.Context, projectID, principalID string) (bool, error)
	ListProjects(ctx context.Context) ([]sqlite.Project, error)
	ProjectIDsForPrincipal(ctx context.Context, principalID string) ([]string, error)
}

// Verifier decides whether a principal may read a project's resources.
// Every lookup failure resolves to deny; the boolean result is always
// definite and never conflated with an error.
type Verifier struct {
	catalog Catalog
}

// NewVerifier constructs a Verifier over the given catalog.
func NewVerifier(catalog Catalog) *Verifier {
	return &Verifier{catalog: catalog}
}

// Verify reports whether the principal may read the project. Precedence:
// admin, then project owner, then any active collaboration row.
func (v *Verifier) Verify(ctx context.Context, principal identity.Principal, projectID string) bool {
	if v == nil || v.catalog == nil {
		return false
	}
	if strings.TrimSpace(projectID) == "" {
		return false
	}
	if principal.IsAdmin() {
		return true
	}
	project, err := v.catalog.ProjectByID(ctx, projectID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			common.Logger().Warn("access: project lookup failed, denying", "project", projectID, "error", err)
		}
		return false
	}
	if project.OwnerID == principal.ID {
		return true
	}
	active, err := v.catalog.HasActiveCollaboration(ctx, projectID, principal.ID)
	if err != nil {
		common.Logger().Warn("access: collaboration lookup failed, denying", "project", projectID, "principal", principal.ID, "error", err)
		return false
	}
	return active
}

// VerifyOwnership allows only admins or the true project owner. Used where
// write-level trust is required.
func (v *Verifier) VerifyOwnership(ctx context.Context, principal identity.Principal, projectID string) bool {
	if v == nil || v.catalog == nil {
		return false
	}
	if strings.TrimSpace(projectID) == "" {
		return false
	}
	if principal.IsAdmin() {
		return true
	}
	project, err := v.catalog.ProjectByID(ctx, projectID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			common.Logger().Warn("access: project lookup failed, denying", "project", projectID, "error", err)
		}
		return false
	}
	return project.OwnerID == principal.ID
}

// ListAccessibleProjects returns the project ids the principal may read:
// everything for admins, otherwise the union of owned and actively
// collaborated projects. The result may contain duplicates.
func (v *Verifier) ListAccessibleProjects(ctx context.Context, principal identity.Principal) ([]string, error) {
	if v == nil || v.catalog == nil {
		return nil, errors.New("verifier not initialised")
	}
	if principal.IsAdmin() {
		projects, err := v.catalog.ListProjects(ctx)
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		ids := make([]string, 0, len(projects))
		for _, project := range projects {
			ids = append(ids, project.ID)
		}
		return ids, nil
	}
	ids, err := v.catalog.ProjectIDsForPrincipal(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("list accessible projects: %w", err)
	}
	return ids, nil
}
