// File path: internal/api/artifact_handler.go
package api

import (
	"errors"
	"fmt"
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/launchbase/opsgate/internal/artifact"
	"github.com/launchbase/opsgate/internal/ratelimit"
)

// handleArtifact serves GET /artifacts/{id}: throttle, resolve, then
// stream local bytes or redirect to a signed URL. A client disconnect
// mid-stream cancels the copy; the file handle is released on every path.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	decision := s.limiter.Check(r.Context(), ratelimit.Key("download", principal.ID), s.downloadRule.Max, s.downloadRule.Window)
	setRateHeaders(w, decision)
	if !decision.Allowed {
		writeThrottled(w, decision)
		return
	}

	artifactID := chi.URLParam(r, "id")
	resolution, err := s.gateway.Resolve(r.Context(), artifactID, principal)
	if err != nil {
		switch {
		case errors.Is(err, artifact.ErrNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, artifact.ErrDenied):
			writeError(w, http.StatusForbidden, err)
		default:
			writeError(w, http.StatusInternalServerError, fmt.Errorf("resolve artifact"))
		}
		return
	}
	if resolution.Redirect() {
		http.Redirect(w, r, resolution.RedirectURL, http.StatusFound)
		return
	}
	defer resolution.Close()

	w.Header().Set("Content-Type", resolution.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resolution.Filename))
	w.Header().Set("Cache-Control", "private")
	http.ServeContent(w, r, resolution.Filename, resolution.ModTime, resolution.File)
}
