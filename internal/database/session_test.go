package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/callgreet/callgreet/internal/call"
	"github.com/callgreet/callgreet/internal/database/models"
)

func newTestSession(callID string) *models.CallSession {
	return &models.CallSession{
		CallID:     callID,
		FromNumber: "+15551234567",
		ToNumber:   "+15559876543",
		State:      string(call.StateIncoming),
		Language:   "en",
		StartedAt:  time.Now().UTC(),
	}
}

func strptr(s string) *string { return &s }

func TestSessionCreateIdempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewCallSessionRepository(db)
	ctx := context.Background()

	first, err := repo.Create(ctx, newTestSession("CA001"))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if first.State != string(call.StateIncoming) {
		t.Errorf("state = %q, want incoming", first.State)
	}

	// Advance the session, then redeliver the initial webhook. The row
	// must come back unchanged.
	if _, err := repo.Transition(ctx, "CA001", string(call.StateAssisted), SessionUpdate{
		Mode: strptr(string(call.ModeAssisted)),
	}); err != nil {
		t.Fatalf("Transition() error: %v", err)
	}

	again, err := repo.Create(ctx, newTestSession("CA001"))
	if err != nil {
		t.Fatalf("redelivered Create() error: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("redelivery created a new row: id %d != %d", again.ID, first.ID)
	}
	if again.State != string(call.StateAssisted) {
		t.Errorf("redelivery reset state to %q", again.State)
	}
}

func TestSessionTransitionRejectsBackward(t *testing.T) {
	db := openTestDB(t)
	repo := NewCallSessionRepository(db)
	ctx := context.Background()

	if _, err := repo.Create(ctx, newTestSession("CA002")); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := repo.Transition(ctx, "CA002", string(call.StateInProgress), SessionUpdate{}); err != nil {
		t.Fatalf("forward Transition() error: %v", err)
	}

	_, err := repo.Transition(ctx, "CA002", string(call.StateConsentPending), SessionUpdate{})
	if !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("backward transition error = %v, want ErrStaleTransition", err)
	}

	s, err := repo.GetByCallID(ctx, "CA002")
	if err != nil {
		t.Fatalf("GetByCallID() error: %v", err)
	}
	if s.State != string(call.StateInProgress) {
		t.Errorf("state mutated to %q by rejected transition", s.State)
	}
}

func TestSessionTerminalRedeliveryNoop(t *testing.T) {
	db := openTestDB(t)
	repo := NewCallSessionRepository(db)
	ctx := context.Background()

	if _, err := repo.Create(ctx, newTestSession("CA003")); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	ended := time.Now().UTC()
	noop, err := repo.Transition(ctx, "CA003", string(call.StateCompleted), SessionUpdate{EndedAt: &ended})
	if err != nil {
		t.Fatalf("Transition() error: %v", err)
	}
	if noop {
		t.Error("first terminal transition reported noop")
	}

	before, _ := repo.GetByCallID(ctx, "CA003")

	later := ended.Add(time.Hour)
	noop, err = repo.Transition(ctx, "CA003", string(call.StateCompleted), SessionUpdate{EndedAt: &later})
	if err != nil {
		t.Fatalf("redelivered Transition() error: %v", err)
	}
	if !noop {
		t.Error("redelivered terminal transition not reported as noop")
	}

	after, _ := repo.GetByCallID(ctx, "CA003")
	if !after.UpdatedAt.Equal(before.UpdatedAt) || after.EndedAt.Unix() != before.EndedAt.Unix() {
		t.Error("redelivered terminal transition mutated the row")
	}
}

func TestSessionModeImmutable(t *testing.T) {
	db := openTestDB(t)
	repo := NewCallSessionRepository(db)
	ctx := context.Background()

	if _, err := repo.Create(ctx, newTestSession("CA004")); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := repo.Transition(ctx, "CA004", string(call.StateBridging), SessionUpdate{
		Mode: strptr(string(call.ModeBridge)),
	}); err != nil {
		t.Fatalf("Transition() error: %v", err)
	}

	_, err := repo.Transition(ctx, "CA004", string(call.StateInProgress), SessionUpdate{
		Mode: strptr(string(call.ModeAssisted)),
	})
	if !errors.Is(err, ErrModeAlreadySet) {
		t.Fatalf("mode change error = %v, want ErrModeAlreadySet", err)
	}
}

func TestSessionPurgeExpiredIdempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewCallSessionRepository(db)
	ctx := context.Background()

	// Old session with refs: eligible.
	if _, err := repo.Create(ctx, newTestSession("CA005")); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	oldEnd := time.Now().UTC().Add(-40 * 24 * time.Hour)
	if _, err := repo.Transition(ctx, "CA005", string(call.StateCompleted), SessionUpdate{
		EndedAt:       &oldEnd,
		RecordingRef:  strptr("rec/CA005.wav"),
		TranscriptRef: strptr("tr/CA005.json"),
	}); err != nil {
		t.Fatalf("Transition() error: %v", err)
	}

	// Recent session: not eligible.
	if _, err := repo.Create(ctx, newTestSession("CA006")); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	recentEnd := time.Now().UTC().Add(-time.Hour)
	if _, err := repo.Transition(ctx, "CA006", string(call.StateCompleted), SessionUpdate{
		EndedAt:      &recentEnd,
		RecordingRef: strptr("rec/CA006.wav"),
	}); err != nil {
		t.Fatalf("Transition() error: %v", err)
	}

	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)
	purged, err := repo.PurgeExpired(ctx, cutoff, "retention window elapsed")
	if err != nil {
		t.Fatalf("PurgeExpired() error: %v", err)
	}
	if len(purged) != 1 || purged[0] != "CA005" {
		t.Fatalf("purged = %v, want [CA005]", purged)
	}

	s, _ := repo.GetByCallID(ctx, "CA005")
	if s.RecordingRef != nil || s.TranscriptRef != nil {
		t.Error("refs not nulled by purge")
	}
	if s.PurgedAt == nil || s.PurgeReason != "retention window elapsed" {
		t.Error("purge event not recorded")
	}
	if s.State != string(call.StateCompleted) {
		t.Error("purge must not change session state")
	}

	// Second pass over the same data is a no-op.
	purged, err = repo.PurgeExpired(ctx, cutoff, "retention window elapsed")
	if err != nil {
		t.Fatalf("second PurgeExpired() error: %v", err)
	}
	if len(purged) != 0 {
		t.Errorf("second purge touched %v, want nothing", purged)
	}

	recent, _ := repo.GetByCallID(ctx, "CA006")
	if recent.RecordingRef == nil {
		t.Error("recent session purged before cutoff")
	}
}

func TestSessionListFilter(t *testing.T) {
	db := openTestDB(t)
	repo := NewCallSessionRepository(db)
	ctx := context.Background()

	for _, id := range []string{"CA010", "CA011", "CA012"} {
		if _, err := repo.Create(ctx, newTestSession(id)); err != nil {
			t.Fatalf("Create(%s) error: %v", id, err)
		}
	}
	if _, err := repo.Transition(ctx, "CA012", string(call.StateAssisted), SessionUpdate{
		Mode: strptr(string(call.ModeAssisted)),
	}); err != nil {
		t.Fatalf("Transition() error: %v", err)
	}

	sessions, total, err := repo.List(ctx, SessionListFilter{State: string(call.StateIncoming)})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if total != 2 || len(sessions) != 2 {
		t.Errorf("List(incoming) = %d rows, total %d; want 2, 2", len(sessions), total)
	}

	_, total, err = repo.List(ctx, SessionListFilter{Search: "CA012"})
	if err != nil {
		t.Fatalf("List(search) error: %v", err)
	}
	if total != 1 {
		t.Errorf("List(search CA012) total = %d, want 1", total)
	}
}

func TestSessionCapturedFieldsAndHandoff(t *testing.T) {
	db := openTestDB(t)
	repo := NewCallSessionRepository(db)
	ctx := context.Background()

	if _, err := repo.Create(ctx, newTestSession("CA020")); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := repo.SetCapturedFields(ctx, "CA020", `{"name":"Jane"}`); err != nil {
		t.Fatalf("SetCapturedFields() error: %v", err)
	}
	if err := repo.SetHandoff(ctx, "CA020"); err != nil {
		t.Fatalf("SetHandoff() error: %v", err)
	}

	s, err := repo.GetByCallID(ctx, "CA020")
	if err != nil {
		t.Fatalf("GetByCallID() error: %v", err)
	}
	if s.CapturedFields != `{"name":"Jane"}` || !s.Handoff {
		t.Errorf("session = %+v, want captured fields and handoff set", s)
	}

	if err := repo.SetHandoff(ctx, "CA404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetHandoff(unknown) error = %v, want ErrNotFound", err)
	}
}
