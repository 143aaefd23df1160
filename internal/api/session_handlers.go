package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/callgreet/callgreet/internal/database"
	"github.com/callgreet/callgreet/internal/database/models"
	"github.com/go-chi/chi/v5"
)

// defaultPageSize bounds session list pages.
const defaultPageSize = 50

// maxPageSize is the largest page the list endpoint serves.
const maxPageSize = 200

type sessionResponse struct {
	CallID         string            `json:"call_id"`
	FromNumber     string            `json:"from_number"`
	ToNumber       string            `json:"to_number"`
	State          string            `json:"state"`
	Mode           string            `json:"mode,omitempty"`
	ConsentStatus  string            `json:"consent_status,omitempty"`
	Language       string            `json:"language,omitempty"`
	PickupMode     string            `json:"pickup_mode,omitempty"`
	RouteTaken     string            `json:"route_taken,omitempty"`
	Handoff        bool              `json:"handoff"`
	CapturedFields map[string]string `json:"captured_fields,omitempty"`
	StartedAt      string            `json:"started_at"`
	EndedAt        *string           `json:"ended_at,omitempty"`
	RecordingRef   *string           `json:"recording_ref,omitempty"`
	PurgedAt       *string           `json:"purged_at,omitempty"`
	PurgeReason    string            `json:"purge_reason,omitempty"`
}

type sessionListResponse struct {
	Sessions []sessionResponse `json:"sessions"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type consentResponse struct {
	Status     string `json:"status"`
	Language   string `json:"language"`
	DigitInput string `json:"digit_input,omitempty"`
	CallerHash string `json:"caller_hash"`
	CreatedAt  string `json:"created_at"`
}

type sessionDetailResponse struct {
	sessionResponse
	Consents []consentResponse `json:"consents"`
}

func toSessionResponse(sess *models.CallSession) sessionResponse {
	resp := sessionResponse{
		CallID:        sess.CallID,
		FromNumber:    sess.FromNumber,
		ToNumber:      sess.ToNumber,
		State:         sess.State,
		Mode:          sess.Mode,
		ConsentStatus: sess.ConsentStatus,
		Language:      sess.Language,
		PickupMode:    sess.PickupMode,
		RouteTaken:    sess.RouteTaken,
		Handoff:       sess.Handoff,
		StartedAt:     sess.StartedAt.Format(time.RFC3339),
		RecordingRef:  sess.RecordingRef,
		PurgeReason:   sess.PurgeReason,
	}
	if sess.CapturedFields != "" {
		var fields map[string]string
		if err := json.Unmarshal([]byte(sess.CapturedFields), &fields); err == nil {
			resp.CapturedFields = fields
		}
	}
	if sess.EndedAt != nil {
		t := sess.EndedAt.Format(time.RFC3339)
		resp.EndedAt = &t
	}
	if sess.PurgedAt != nil {
		t := sess.PurgedAt.Format(time.RFC3339)
		resp.PurgedAt = &t
	}
	return resp
}

// handleListSessions returns a filtered page of call sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := database.SessionListFilter{
		State:  q.Get("state"),
		Mode:   q.Get("mode"),
		Search: q.Get("q"),
		Limit:  defaultPageSize,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	sessions, total, err := s.sessions.List(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list call sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]sessionResponse, len(sessions))
	for i := range sessions {
		items[i] = toSessionResponse(&sessions[i])
	}

	writeJSON(w, http.StatusOK, sessionListResponse{
		Sessions: items,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

// handleGetSession returns one call session with its consent audit trail.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	ctx := r.Context()

	sess, err := s.sessions.GetByCallID(ctx, callID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "call session not found")
			return
		}
		slog.Error("failed to load call session", "call_id", callID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	records, err := s.consents.ListByCallID(ctx, callID)
	if err != nil {
		slog.Error("failed to load consent records", "call_id", callID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	consents := make([]consentResponse, len(records))
	for i, rec := range records {
		consents[i] = consentResponse{
			Status:     rec.Status,
			Language:   rec.Language,
			DigitInput: rec.DigitInput,
			CallerHash: rec.CallerHash,
			CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, sessionDetailResponse{
		sessionResponse: toSessionResponse(sess),
		Consents:        consents,
	})
}
