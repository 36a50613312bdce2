package server

import (
	"errors"
	"net/http"
	"strconv"

	"picdrop/internal/audit"
)

const maxAuditLimit = 500

// handleAudit lists recent audit events, newest first. ?limit=N caps the
// result (default 50).
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeMessage(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxAuditLimit)
	}

	events, err := s.cfg.Audit.Recent(r.Context(), limit)
	switch {
	case errors.Is(err, audit.ErrDisabled):
		writeMessage(w, http.StatusNotFound, "Audit trail disabled")
		return
	case err != nil:
		s.log.Errorf("rid=%s msg=\"audit query failed\" err=%v", RequestIDFromContext(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "Error fetching audit events", err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
