package server

import (
	"net/http"
	"strconv"
	"time"

	"medigateway/core/audit"
)

const defaultAuditLimit = 50

// auditReader is satisfied by audit stores that support reading the trail
// back. The plain Logger interface stays write-only.
type auditReader interface {
	Recent(n int) ([]audit.Event, error)
}

// RegisterAuditAPI exposes the local submission trail. This is the
// gateway's own record of what it sent to the ledger, not the on-chain
// history (that lives under /api/diagnosis/forms/{formId}/audit).
func RegisterAuditAPI(mux *http.ServeMux, s *Server) {
	mux.Handle("GET /api/audit", s.requireAuth(http.HandlerFunc(s.handleAuditTrail)))
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	reader, ok := s.audit.(auditReader)
	if !ok {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"count":   0,
			"data":    []audit.Event{},
		})
		return
	}

	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	events, err := reader.Recent(limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"count":     len(events),
		"data":      events,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
