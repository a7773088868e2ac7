// File path: internal/artifact/gateway.go
package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/launchbase/opsgate/internal/audit"
	"github.com/launchbase/opsgate/internal/common"
	"github.com/launchbase/opsgate/internal/common/telemetry"
	"github.com/launchbase/opsgate/internal/identity"
	"github.com/launchbase/opsgate/internal/sqlite"
)

var (
	// ErrNotFound covers unknown artifacts, unknown parent runs and
	// missing files.
	ErrNotFound = errors.New("artifact not available")
	// ErrDenied covers every authorization failure, including unattached
	// runs and path-escape attempts. The distinction lives in the audit
	// trail, never in the response.
	ErrDenied = errors.New("artifact access denied")
)

// Catalog is the slice of the metadata store the gateway reads.
type Catalog interface {
	ArtifactByID(ctx context.Context, artifactID string) (*sqlite.Artifact, error)
	RunByID(ctx context.Context, runID string) (*sqlite.Run, error)
}

// AccessVerifier decides project-level read access.
type AccessVerifier interface {
	Verify(ctx context.Context, principal identity.Principal, projectID string) bool
}

// Resolution is a safe delivery instruction: either an opened local file
// to stream or a signed URL to redirect to. Raw storage paths never leave
// the gateway.
type Resolution struct {
	ArtifactID  string
	RedirectURL string
	File        *os.File
	Size        int64
	ModTime     time.Time
	ContentType string
	Filename    string
}

// Redirect reports whether the caller should redirect instead of stream.
func (r *Resolution) Redirect() bool {
	return r != nil && r.RedirectURL != ""
}

// Close releases the file handle, if any.
func (r *Resolution) Close() error {
	if r == nil || r.File == nil {
		return nil
	}
	return r.File.Close()
}

// Gateway resolves artifact identifiers into byte streams or redirects.
type Gateway struct {
	catalog  Catalog
	verifier AccessVerifier
	recorder *audit.Recorder
	signer   URLSigner

	root         string
	signedURLTTL time.Duration
}

// NewGateway constructs a Gateway. The artifact root must exist; it is
// canonicalised once so every containment check compares against the same
// resolved prefix. signer may be nil when no remote storage is configured.
func NewGateway(catalog Catalog, verifier AccessVerifier, recorder *audit.Recorder, signer URLSigner, root string, signedURLTTL time.Duration) (*Gateway, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return nil, errors.New("artifact root required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("canonicalise artifact root: %w", err)
	}
	if signedURLTTL <= 0 {
		signedURLTTL = 15 * time.Minute
	}
	return &Gateway{
		catalog:      catalog,
		verifier:     verifier,
		recorder:     recorder,
		signer:       signer,
		root:         canonical,
		signedURLTTL: signedURLTTL,
	}, nil
}

// Resolve runs the delivery pipeline for one artifact: load metadata, walk
// up to the parent run and its project, verify access, then branch on the
// locator scheme. Every outcome is audited.
func (g *Gateway) Resolve(ctx context.Context, artifactID string, principal identity.Principal) (*Resolution, error) {
	ctx, done := telemetry.StartSpan(ctx, "artifact.resolve")
	defer done("artifact", artifactID)

	record := func(runID, outcome, reason string) {
		g.recorder.Record(ctx, principal.ID, artifactID, runID, "artifact_download", outcome, reason)
		telemetry.RecordArtifactResolution(outcome)
	}

	stored, err := g.catalog.ArtifactByID(ctx, artifactID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			record("", audit.OutcomeNotFound, "")
			return nil, ErrNotFound
		}
		common.Logger().Warn("artifact: metadata lookup failed, denying", "artifact", artifactID, "error", err)
		record("", audit.OutcomeDenied, audit.ReasonAccessDenied)
		return nil, ErrDenied
	}
	run, err := g.catalog.RunByID(ctx, stored.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			record("", audit.OutcomeNotFound, "")
			return nil, ErrNotFound
		}
		common.Logger().Warn("artifact: run lookup failed, denying", "artifact", artifactID, "run", stored.RunID, "error", err)
		record(stored.RunID, audit.OutcomeDenied, audit.ReasonAccessDenied)
		return nil, ErrDenied
	}
	if !run.ProjectID.Valid || strings.TrimSpace(run.ProjectID.String) == "" {
		record(run.ID, audit.OutcomeDenied, audit.ReasonUnattachedRun)
		return nil, ErrDenied
	}
	if !g.verifier.Verify(ctx, principal, run.ProjectID.String) {
		record(run.ID, audit.OutcomeDenied, audit.ReasonAccessDenied)
		return nil, ErrDenied
	}

	locator, err := ParseLocator(stored.Locator)
	if err != nil {
		common.Logger().Warn("artifact: unclassifiable locator", "artifact", artifactID, "error", err)
		record(run.ID, audit.OutcomeNotFound, "")
		return nil, ErrNotFound
	}
	switch loc := locator.(type) {
	case RemoteLocator:
		return g.resolveRemote(ctx, stored, run.ID, loc, record)
	case LocalLocator:
		return g.resolveLocal(ctx, stored, run.ID, loc, record)
	default:
		record(run.ID, audit.OutcomeNotFound, "")
		return nil, ErrNotFound
	}
}

func (g *Gateway) resolveRemote(ctx context.Context, stored *sqlite.Artifact, runID string, loc RemoteLocator, record func(runID, outcome, reason string)) (*Resolution, error) {
	if g.signer == nil {
		common.Logger().Warn("artifact: remote locator without signer", "artifact", stored.ID)
		record(runID, audit.OutcomeNotFound, "")
		return nil, ErrNotFound
	}
	signed, err := g.signer.SignGetObject(ctx, loc.Bucket, loc.Key, g.signedURLTTL)
	if err != nil {
		common.Logger().Error("artifact: presign failed", "artifact", stored.ID, "error", err)
		record(runID, audit.OutcomeNotFound, "")
		return nil, ErrNotFound
	}
	record(runID, audit.OutcomeRedirected, "")
	telemetry.RecordSignedURL()
	return &Resolution{
		ArtifactID:  stored.ID,
		RedirectURL: signed,
		ContentType: stored.MimeType,
		Filename:    SanitizeFilename(stored.Filename),
	}, nil
}

func (g *Gateway) resolveLocal(ctx context.Context, stored *sqlite.Artifact, runID string, loc LocalLocator, record func(runID, outcome, reason string)) (*Resolution, error) {
	resolved, err := g.containedPath(loc.Path)
	if err != nil {
		if errors.Is(err, ErrDenied) {
			common.Logger().Warn("artifact: path escape blocked",
				"artifact", stored.ID, "run", runID, "principal_visible", false)
			record(runID, audit.OutcomeDenied, audit.ReasonPathEscape)
			return nil, ErrDenied
		}
		record(runID, audit.OutcomeNotFound, "")
		return nil, ErrNotFound
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		record(runID, audit.OutcomeNotFound, "")
		return nil, ErrNotFound
	}
	file, err := os.Open(resolved)
	if err != nil {
		record(runID, audit.OutcomeNotFound, "")
		return nil, ErrNotFound
	}
	record(runID, audit.OutcomeStreamed, "")
	telemetry.RecordStreamedBytes(info.Size())
	return &Resolution{
		ArtifactID:  stored.ID,
		File:        file,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		ContentType: stored.MimeType,
		Filename:    SanitizeFilename(stored.Filename),
	}, nil
}

// containedPath resolves a stored relative path against the canonical root
// and rejects anything that escapes it. The prefix comparison includes the
// trailing separator so a sibling such as root+"-other" cannot pass.
func (g *Gateway) containedPath(rel string) (string, error) {
	candidate := filepath.Join(g.root, filepath.FromSlash(rel))
	abs, err := filepath.Abs(candidate)
	if err != nil {
		return "", ErrDenied
	}
	if !withinRoot(g.root, abs) {
		return "", ErrDenied
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", ErrDenied
	}
	if !withinRoot(g.root, resolved) {
		return "", ErrDenied
	}
	return resolved, nil
}

func withinRoot(root, path string) bool {
	if path == root {
		// The root itself is a directory, never a deliverable file.
		return false
	}
	return strings.HasPrefix(path, root+string(os.PathSeparator))
}

// SanitizeFilename strips characters that could break out of the
// Content-Disposition header. The result derives only from stored
// metadata, never caller input.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r < 0x20 || r == 0x7f:
			// control characters, including CR/LF header injection
		case r == '"' || r == '\\' || r == '/':
		default:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "download"
	}
	return cleaned
}
