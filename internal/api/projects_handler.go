// File path: internal/api/projects_handler.go
package api

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/launchbase/opsgate/internal/common"
)

type projectSummary struct {
	ID        string `json:"id"`
	Documents int    `json:"documents"`
}

// handleProjects serves GET /v1/projects: the projects the principal may
// read, with their knowledge ledger document counts.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	ids, err := s.verifier.ListAccessibleProjects(r.Context(), principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("list projects"))
		return
	}
	// The verifier may return duplicates; collapse them for the response.
	seen := make(map[string]struct{}, len(ids))
	summaries := make([]projectSummary, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		docs, err := s.knowledge.Docs(r.Context(), id)
		if err != nil {
			common.Logger().Warn("api: knowledge ledger unreadable", "project", id, "error", err)
		}
		summaries = append(summaries, projectSummary{ID: id, Documents: len(docs)})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ID < summaries[j].ID
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": summaries})
}
