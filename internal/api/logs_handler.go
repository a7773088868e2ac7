// File path: internal/api/logs_handler.go
package api

import (
	"fmt"
	"net/http"

	"github.com/launchbase/opsgate/internal/common"
)

// handleLogs serves GET /v1/logs: the captured log history. Admin only.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !principal.IsAdmin() {
		writeError(w, http.StatusForbidden, fmt.Errorf("admin role required"))
		return
	}
	entries := common.LogEntries()
	if entries == nil {
		entries = []common.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
