package database

import (
	"context"
	"errors"
	"time"

	"github.com/callgreet/callgreet/internal/database/models"
)

// ErrNotFound is returned by Get* methods when no row matches.
var ErrNotFound = errors.New("not found")

// ErrStaleTransition is returned when an update would move a call session
// backward in the state machine. The caller logs it and does not apply
// the update.
var ErrStaleTransition = errors.New("stale state transition")

// ErrModeAlreadySet is returned when an update attempts to change a call
// session's mode after it has been set.
var ErrModeAlreadySet = errors.New("call mode already set")

// CallSessionRepository manages persisted call session state machines.
// All mutations are keyed by the carrier call ID and are idempotent under
// webhook redelivery.
type CallSessionRepository interface {
	// Create inserts the session row for a newly observed call ID.
	// Creating an already-existing call ID returns the existing row
	// unchanged (webhook redelivery of the initial event).
	Create(ctx context.Context, s *models.CallSession) (*models.CallSession, error)
	GetByCallID(ctx context.Context, callID string) (*models.CallSession, error)
	// Transition moves the session to a new state, applying the given
	// field updates in the same statement. It returns ErrStaleTransition
	// if the move is backward and reports noop=true when a terminal state
	// is redelivered.
	Transition(ctx context.Context, callID string, next string, upd SessionUpdate) (noop bool, err error)
	// SetCapturedFields replaces the captured-fields JSON for the call.
	SetCapturedFields(ctx context.Context, callID, fieldsJSON string) error
	// SetHandoff marks the session as escalated to a human.
	SetHandoff(ctx context.Context, callID string) error
	// SetIntakeState replaces the serialized intake conversation state.
	SetIntakeState(ctx context.Context, callID, stateJSON string) error
	GetIntakeState(ctx context.Context, callID string) (string, error)
	// SetRecordingRef stores the carrier's recording reference.
	SetRecordingRef(ctx context.Context, callID, ref string) error
	// SetTranscriptRef stores the transcript reference.
	SetTranscriptRef(ctx context.Context, callID, ref string) error
	List(ctx context.Context, filter SessionListFilter) ([]models.CallSession, int, error)
	// PurgeExpired nulls recording/transcript refs on sessions that ended
	// before cutoff and have not been purged yet. Returns the call IDs
	// purged in this pass; already-purged rows are excluded, so a second
	// run over the same data is a no-op.
	PurgeExpired(ctx context.Context, cutoff time.Time, reason string) ([]string, error)
	CountByState(ctx context.Context) (map[string]int64, error)
}

// SessionUpdate carries the optional column updates applied alongside a
// state transition. Nil pointers leave the column untouched.
type SessionUpdate struct {
	Mode          *string
	ConsentStatus *string
	RouteTaken    *string
	PickupMode    *string
	Language      *string
	EndedAt       *time.Time
	RecordingRef  *string
	TranscriptRef *string
}

// SessionListFilter narrows List results.
type SessionListFilter struct {
	State  string
	Mode   string
	Search string // matched against call_id, from_number, to_number
	Limit  int
	Offset int
}

// ConsentRepository manages the append-only consent audit trail.
type ConsentRepository interface {
	// Record appends a consent decision. Redelivery of the same decision
	// for the same call is ignored; inserted reports whether a new row
	// was written.
	Record(ctx context.Context, rec *models.ConsentRecord) (inserted bool, err error)
	ListByCallID(ctx context.Context, callID string) ([]models.ConsentRecord, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// NotificationRepository marks post-call notification deliveries so
// redelivered terminal callbacks never double-send.
type NotificationRepository interface {
	// MarkSent records a delivery for the call. It reports false when a
	// mark already exists (the notification was already dispatched).
	MarkSent(ctx context.Context, mark *models.NotificationMark) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// SystemConfigRepository manages key-value runtime configuration.
type SystemConfigRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	GetAll(ctx context.Context) ([]models.SystemConfig, error)
}

// AdminUserRepository manages admin API users.
type AdminUserRepository interface {
	Create(ctx context.Context, user *models.AdminUser) error
	GetByUsername(ctx context.Context, username string) (*models.AdminUser, error)
	Count(ctx context.Context) (int64, error)
}
