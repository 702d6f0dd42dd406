package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/probekit/internal/archive"
)

// handleArchive lists archived messages, newest first. total is the number
// stored for the requested protocol, ignoring endpoint and paging.
//
// Query parameters: protocol (websocket|mqtt), endpoint, limit, offset.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeNotFound(w, "message archive is disabled")
		return
	}

	q := r.URL.Query()
	filter := archive.Filter{
		Protocol: archive.Protocol(q.Get("protocol")),
		Endpoint: q.Get("endpoint"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	records, err := s.archive.List(r.Context(), filter)
	if err != nil {
		status, code := classifyError(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("archive query failed", "error", err)
			writeInternalError(w, "archive query failed")
			return
		}
		writeError(w, status, code, err.Error())
		return
	}

	total, err := s.archive.Count(r.Context(), filter.Protocol)
	if err != nil {
		s.logger.Error("archive count failed", "error", err)
		writeInternalError(w, "archive query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": records,
		"count":    len(records),
		"total":    total,
	})
}
