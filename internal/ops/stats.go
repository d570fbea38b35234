package ops

import (
	"net/http"
	"time"
)

// StatsResponse represents the stats endpoint response.
type StatsResponse struct {
	Accounts     int64  `json:"accounts"`
	Groups       int64  `json:"groups"`
	LiveSessions int    `json:"live_sessions"`
	QueuedMsgs   int64  `json:"queued_messages"`
	Timestamp    string `json:"timestamp"`
}

// Stats handles the stats endpoint.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.dir.CountAccounts(ctx)
	if err != nil {
		h.JSON(w, http.StatusInternalServerError, map[string]string{"error": "directory unavailable"})
		return
	}
	groups, err := h.dir.CountGroups(ctx)
	if err != nil {
		h.JSON(w, http.StatusInternalServerError, map[string]string{"error": "directory unavailable"})
		return
	}
	queued, err := h.queue.Pending(ctx)
	if err != nil {
		h.JSON(w, http.StatusInternalServerError, map[string]string{"error": "queue unavailable"})
		return
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		Accounts:     accounts,
		Groups:       groups,
		LiveSessions: h.sessions.Count(),
		QueuedMsgs:   queued,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}
