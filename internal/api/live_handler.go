// File path: internal/api/live_handler.go
package api

import (
	"errors"
	"fmt"
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/launchbase/opsgate/internal/livestate"
)

// handleLiveState serves GET /v1/runs/{id}/live for polling operators.
func (s *Server) handleLiveState(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	runID := chi.URLParam(r, "id")
	state, decision, err := s.projector.GetLiveState(r.Context(), runID, principal)
	setRateHeaders(w, decision)
	if err != nil {
		switch {
		case errors.Is(err, livestate.ErrThrottled):
			writeThrottled(w, decision)
		case errors.Is(err, livestate.ErrNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, livestate.ErrDenied):
			writeError(w, http.StatusForbidden, err)
		default:
			writeError(w, http.StatusInternalServerError, fmt.Errorf("project live state"))
		}
		return
	}
	writeJSON(w, http.StatusOK, state)
}
