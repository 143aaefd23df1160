package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/callgreet/callgreet/internal/call"
	"github.com/callgreet/callgreet/internal/database/models"
)

// sessionRepo implements CallSessionRepository.
type sessionRepo struct {
	db *DB
}

// NewCallSessionRepository creates a new CallSessionRepository.
func NewCallSessionRepository(db *DB) CallSessionRepository {
	return &sessionRepo{db: db}
}

const sessionColumns = `id, call_id, from_number, to_number, state, consent_status,
	 language, pickup_mode, route_taken, mode, handoff, captured_fields,
	 started_at, ended_at, recording_ref, transcript_ref, purged_at,
	 purge_reason, created_at, updated_at`

// Create inserts the row for a newly observed call ID. A redelivered
// initial webhook hits the UNIQUE(call_id) constraint; the existing row is
// returned unchanged.
func (r *sessionRepo) Create(ctx context.Context, s *models.CallSession) (*models.CallSession, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO call_sessions
		 (call_id, from_number, to_number, state, language, pickup_mode, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.CallID, s.FromNumber, s.ToNumber, s.State, s.Language, s.PickupMode, s.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting call session: %w", err)
	}
	return r.GetByCallID(ctx, s.CallID)
}

// GetByCallID returns the session for the carrier call ID.
func (r *sessionRepo) GetByCallID(ctx context.Context, callID string) (*models.CallSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM call_sessions WHERE call_id = ?`, callID)
	return scanSession(row)
}

// Transition moves the session forward in the state machine. Backward
// moves return ErrStaleTransition; a redelivered terminal state reports
// noop=true and changes nothing.
func (r *sessionRepo) Transition(ctx context.Context, callID string, next string, upd SessionUpdate) (bool, error) {
	nextState, err := call.ParseState(next)
	if err != nil {
		return false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transition tx: %w", err)
	}
	defer tx.Rollback()

	var current, mode string
	err = tx.QueryRowContext(ctx,
		`SELECT state, mode FROM call_sessions WHERE call_id = ?`, callID,
	).Scan(&current, &mode)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("reading session state: %w", err)
	}

	currentState, err := call.ParseState(current)
	if err != nil {
		return false, fmt.Errorf("stored state for %s: %w", callID, err)
	}

	if currentState.Terminal() && nextState.Terminal() {
		// Redelivered terminal callback; an opted-out call also reports a
		// terminal carrier status later. Nothing to change either way.
		return true, nil
	}
	if !currentState.CanTransition(nextState) {
		return false, fmt.Errorf("%w: %s -> %s for call %s", ErrStaleTransition, current, next, callID)
	}
	if upd.Mode != nil && mode != "" && *upd.Mode != mode {
		return false, fmt.Errorf("%w: call %s is %s", ErrModeAlreadySet, callID, mode)
	}

	set := "state = ?, updated_at = datetime('now')"
	args := []any{next}
	appendSet := func(col string, v any) {
		set += ", " + col + " = ?"
		args = append(args, v)
	}
	if upd.Mode != nil && mode == "" {
		appendSet("mode", *upd.Mode)
	}
	if upd.ConsentStatus != nil {
		appendSet("consent_status", *upd.ConsentStatus)
	}
	if upd.RouteTaken != nil {
		appendSet("route_taken", *upd.RouteTaken)
	}
	if upd.PickupMode != nil {
		appendSet("pickup_mode", *upd.PickupMode)
	}
	if upd.Language != nil {
		appendSet("language", *upd.Language)
	}
	if upd.EndedAt != nil {
		appendSet("ended_at", *upd.EndedAt)
	}
	if upd.RecordingRef != nil {
		appendSet("recording_ref", *upd.RecordingRef)
	}
	if upd.TranscriptRef != nil {
		appendSet("transcript_ref", *upd.TranscriptRef)
	}
	args = append(args, callID)

	if _, err := tx.ExecContext(ctx,
		`UPDATE call_sessions SET `+set+` WHERE call_id = ?`, args...); err != nil {
		return false, fmt.Errorf("updating session %s: %w", callID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transition: %w", err)
	}
	return false, nil
}

// SetCapturedFields replaces the captured-fields JSON for the call.
func (r *sessionRepo) SetCapturedFields(ctx context.Context, callID, fieldsJSON string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE call_sessions SET captured_fields = ?, updated_at = datetime('now') WHERE call_id = ?`,
		fieldsJSON, callID)
	if err != nil {
		return fmt.Errorf("updating captured fields: %w", err)
	}
	return requireRow(res)
}

// SetHandoff marks the session as escalated to a human line.
func (r *sessionRepo) SetHandoff(ctx context.Context, callID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE call_sessions SET handoff = 1, updated_at = datetime('now') WHERE call_id = ?`,
		callID)
	if err != nil {
		return fmt.Errorf("updating handoff: %w", err)
	}
	return requireRow(res)
}

// SetIntakeState replaces the serialized intake conversation state.
func (r *sessionRepo) SetIntakeState(ctx context.Context, callID, stateJSON string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE call_sessions SET intake_state = ?, updated_at = datetime('now') WHERE call_id = ?`,
		stateJSON, callID)
	if err != nil {
		return fmt.Errorf("updating intake state: %w", err)
	}
	return requireRow(res)
}

// GetIntakeState returns the serialized intake conversation state.
func (r *sessionRepo) GetIntakeState(ctx context.Context, callID string) (string, error) {
	var state string
	err := r.db.QueryRowContext(ctx,
		`SELECT intake_state FROM call_sessions WHERE call_id = ?`, callID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading intake state: %w", err)
	}
	return state, nil
}

// SetRecordingRef stores the carrier's recording reference.
func (r *sessionRepo) SetRecordingRef(ctx context.Context, callID, ref string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE call_sessions SET recording_ref = ?, updated_at = datetime('now')
		 WHERE call_id = ? AND purged_at IS NULL`, ref, callID)
	if err != nil {
		return fmt.Errorf("updating recording ref: %w", err)
	}
	return requireRow(res)
}

// SetTranscriptRef stores the transcript reference.
func (r *sessionRepo) SetTranscriptRef(ctx context.Context, callID, ref string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE call_sessions SET transcript_ref = ?, updated_at = datetime('now')
		 WHERE call_id = ? AND purged_at IS NULL`, ref, callID)
	if err != nil {
		return fmt.Errorf("updating transcript ref: %w", err)
	}
	return requireRow(res)
}

// List returns sessions matching the filter, along with the total count.
func (r *sessionRepo) List(ctx context.Context, filter SessionListFilter) ([]models.CallSession, int, error) {
	where := "1=1"
	args := []any{}

	if filter.State != "" {
		where += " AND state = ?"
		args = append(args, filter.State)
	}
	if filter.Mode != "" {
		where += " AND mode = ?"
		args = append(args, filter.Mode)
	}
	if filter.Search != "" {
		where += " AND (call_id LIKE ? OR from_number LIKE ? OR to_number LIKE ?)"
		s := "%" + filter.Search + "%"
		args = append(args, s, s, s)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM call_sessions WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting sessions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM call_sessions WHERE `+where+
			` ORDER BY started_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.CallSession
	for rows.Next() {
		s, err := scanSessionRow(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, total, rows.Err()
}

// PurgeExpired nulls recording/transcript refs on sessions that ended
// before cutoff. The purged_at guard excludes rows purged by an earlier
// pass, which makes concurrent or repeated runs no-ops.
func (r *sessionRepo) PurgeExpired(ctx context.Context, cutoff time.Time, reason string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT call_id FROM call_sessions
		 WHERE ended_at IS NOT NULL AND ended_at < ? AND purged_at IS NULL
		 AND (recording_ref IS NOT NULL OR transcript_ref IS NOT NULL)`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("selecting purge candidates: %w", err)
	}
	defer rows.Close()

	var callIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning purge candidate: %w", err)
		}
		callIDs = append(callIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var purged []string
	for _, id := range callIDs {
		res, err := r.db.ExecContext(ctx,
			`UPDATE call_sessions
			 SET recording_ref = NULL, transcript_ref = NULL,
			     intake_state = '{}',
			     purged_at = datetime('now'), purge_reason = ?,
			     updated_at = datetime('now')
			 WHERE call_id = ? AND purged_at IS NULL`, reason, id)
		if err != nil {
			// One failing record must not abort the batch; it is retried
			// next cycle because purged_at stays NULL.
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			purged = append(purged, id)
		}
	}
	return purged, nil
}

// CountByState returns session counts grouped by lifecycle state.
func (r *sessionRepo) CountByState(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM call_sessions GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("counting sessions by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scanning state count: %w", err)
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row *sql.Row) (*models.CallSession, error) {
	s, err := scanSessionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func scanSessionRow(row rowScanner) (*models.CallSession, error) {
	var s models.CallSession
	err := row.Scan(
		&s.ID, &s.CallID, &s.FromNumber, &s.ToNumber, &s.State, &s.ConsentStatus,
		&s.Language, &s.PickupMode, &s.RouteTaken, &s.Mode, &s.Handoff,
		&s.CapturedFields, &s.StartedAt, &s.EndedAt, &s.RecordingRef,
		&s.TranscriptRef, &s.PurgedAt, &s.PurgeReason, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning call session: %w", err)
	}
	return &s, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
