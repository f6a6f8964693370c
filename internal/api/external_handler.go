package api

import (
	"net/http"

	"github.com/importly/health-dashboard-backend/internal/external"
)

// handleExternalImport triggers an immediate scan of the external-source
// directories (ECG CSVs, GPX routes), the same function the scheduler
// calls on its own interval.
func (s *Server) handleExternalImport(w http.ResponseWriter, r *http.Request) {
	if err := external.RunExternalImport(s.DB, s.ExternalImportDir, s.Manifest); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "external import scan complete"})
}
