// File path: internal/api/knowledge_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/launchbase/opsgate/internal/knowledge"
)

// handleKnowledgeGet serves GET /v1/projects/{id}/knowledge.
func (s *Server) handleKnowledgeGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "id")
	if !s.verifier.Verify(r.Context(), principal, projectID) {
		writeError(w, http.StatusForbidden, fmt.Errorf("project access denied"))
		return
	}
	docs, err := s.knowledge.Docs(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("read knowledge ledger"))
		return
	}
	if docs == nil {
		docs = []knowledge.Doc{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"docs": docs})
}

type knowledgePutRequest struct {
	Docs []knowledge.Doc `json:"docs"`
}

// handleKnowledgePut serves PUT /v1/projects/{id}/knowledge. Replacing a
// ledger requires write-level trust: admin or true owner.
func (s *Server) handleKnowledgePut(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	projectID := chi.URLParam(r, "id")
	if !s.verifier.VerifyOwnership(r.Context(), principal, projectID) {
		writeError(w, http.StatusForbidden, fmt.Errorf("project access denied"))
		return
	}
	var req knowledgePutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := s.knowledge.ReplaceDocs(r.Context(), projectID, req.Docs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stored": len(req.Docs)})
}
