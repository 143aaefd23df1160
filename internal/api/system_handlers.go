package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/callgreet/callgreet/internal/call"
	"github.com/callgreet/callgreet/internal/postcall"
)

// statsResponse is the shape returned by GET /stats.
type statsResponse struct {
	Sessions      map[string]int64 `json:"sessions_by_state"`
	ActiveCalls   int64            `json:"active_calls"`
	Consents      map[string]int64 `json:"consents_by_status"`
	Notifications int64            `json:"notifications_sent"`
	Uptime        uptimeResponse   `json:"uptime"`
}

type uptimeResponse struct {
	StartedAt  string `json:"started_at"`
	UptimeSec  int64  `json:"uptime_sec"`
	UptimeText string `json:"uptime_text"`
}

// handleStats returns aggregate call and consent counts plus uptime.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	byState, err := s.sessions.CountByState(ctx)
	if err != nil {
		slog.Error("stats: failed to count sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if byState == nil {
		byState = map[string]int64{}
	}

	var active int64
	for state, n := range byState {
		if !call.State(state).Terminal() {
			active += n
		}
	}

	byConsent, err := s.consents.CountByStatus(ctx)
	if err != nil {
		slog.Error("stats: failed to count consents", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if byConsent == nil {
		byConsent = map[string]int64{}
	}

	sent, err := s.notifications.Count(ctx)
	if err != nil {
		slog.Error("stats: failed to count notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now()
	uptime := now.Sub(s.startTime)

	writeJSON(w, http.StatusOK, statsResponse{
		Sessions:      byState,
		ActiveCalls:   active,
		Consents:      byConsent,
		Notifications: sent,
		Uptime: uptimeResponse{
			StartedAt:  s.startTime.Format(time.RFC3339),
			UptimeSec:  int64(uptime.Seconds()),
			UptimeText: formatUptime(uptime),
		},
	})
}

// handleRunPurge triggers a retention purge pass immediately instead of
// waiting for the next ticker interval.
func (s *Server) handleRunPurge(w http.ResponseWriter, r *http.Request) {
	postcall.RunPurge(r.Context(), s.sessions, s.sysConfig)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "purge completed"})
}

// formatUptime renders a duration as a short human string like "3d 4h 12m".
func formatUptime(d time.Duration) string {
	days := int64(d.Hours()) / 24
	hours := int64(d.Hours()) % 24
	mins := int64(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
