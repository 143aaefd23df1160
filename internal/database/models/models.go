package models

import "time"

// CallSession is the persisted state machine record for a single inbound
// call, keyed by the carrier-assigned call ID. A row is created by the
// first webhook for a call and mutated by every subsequent webhook; it is
// never deleted. Retention purge only nulls the recording/transcript
// references.
type CallSession struct {
	ID             int64
	CallID         string
	FromNumber     string
	ToNumber       string
	State          string
	ConsentStatus  string // empty until a terminal consent decision
	Language       string
	PickupMode     string
	RouteTaken     string
	Mode           string // "bridge" | "assisted"; immutable once set
	Handoff        bool
	CapturedFields string // JSON object of field name -> value
	StartedAt      time.Time
	EndedAt        *time.Time
	RecordingRef   *string
	TranscriptRef  *string
	PurgedAt       *time.Time
	PurgeReason    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ConsentRecord is one immutable audit row per terminal consent decision.
// The caller number is stored only as a one-way hash.
type ConsentRecord struct {
	ID         int64
	CallID     string
	CallerHash string
	Status     string // "granted" | "denied" | "timeout"
	Language   string
	DigitInput string
	CreatedAt  time.Time
}

// NotificationMark records that the post-call notification for a call was
// dispatched, so redelivered terminal callbacks never double-send.
type NotificationMark struct {
	ID        string // uuid
	CallID    string
	Recipient string
	SentAt    time.Time
}

// AdminUser is an admin API user.
type AdminUser struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SystemConfig is a key-value runtime configuration entry.
type SystemConfig struct {
	ID        int64
	Key       string
	Value     string
	UpdatedAt time.Time
}
