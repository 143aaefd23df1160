package postcall

import (
	"context"
	"testing"
	"time"

	"github.com/callgreet/callgreet/internal/call"
	"github.com/callgreet/callgreet/internal/database"
	"github.com/callgreet/callgreet/internal/database/models"
)

func seedEndedCall(t *testing.T, sessions database.CallSessionRepository, callID string, endedAgo time.Duration) {
	t.Helper()
	ctx := context.Background()

	started := time.Now().UTC().Add(-endedAgo - time.Minute)
	_, err := sessions.Create(ctx, &models.CallSession{
		CallID:     callID,
		FromNumber: "+15551230001",
		ToNumber:   "+15551230002",
		State:      string(call.StateIncoming),
		StartedAt:  started,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ended := time.Now().UTC().Add(-endedAgo)
	if _, err := sessions.Transition(ctx, callID, string(call.StateCompleted), database.SessionUpdate{
		EndedAt: &ended,
	}); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := sessions.SetRecordingRef(ctx, callID, "rec-"+callID); err != nil {
		t.Fatalf("set recording ref: %v", err)
	}
}

func TestRunPurge(t *testing.T) {
	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	sysConfig, err := database.NewSystemConfigRepository(ctx, db)
	if err != nil {
		t.Fatalf("sysconfig: %v", err)
	}
	sessions := database.NewCallSessionRepository(db)

	seedEndedCall(t, sessions, "CA300", 40*24*time.Hour) // past retention
	seedEndedCall(t, sessions, "CA301", 1*24*time.Hour)  // recent

	// Retention unset: the 30-day default applies.
	RunPurge(ctx, sessions, sysConfig)

	old, err := sessions.GetByCallID(ctx, "CA300")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if old.PurgedAt == nil {
		t.Fatal("expired call was not purged")
	}
	if old.RecordingRef != nil {
		t.Error("recording ref survived the purge")
	}
	if old.PurgeReason != PurgeReasonRetention {
		t.Errorf("purge reason = %q", old.PurgeReason)
	}

	recent, err := sessions.GetByCallID(ctx, "CA301")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if recent.PurgedAt != nil {
		t.Error("call inside the retention window was purged")
	}
	if recent.RecordingRef == nil {
		t.Error("recent call lost its recording ref")
	}
}

func TestRunPurgeDisabledByZeroRetention(t *testing.T) {
	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	sysConfig, err := database.NewSystemConfigRepository(ctx, db)
	if err != nil {
		t.Fatalf("sysconfig: %v", err)
	}
	sessions := database.NewCallSessionRepository(db)

	seedEndedCall(t, sessions, "CA310", 90*24*time.Hour)

	if err := sysConfig.Set(ctx, database.KeyRetentionDays, "0"); err != nil {
		t.Fatalf("set retention: %v", err)
	}
	RunPurge(ctx, sessions, sysConfig)

	old, err := sessions.GetByCallID(ctx, "CA310")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if old.PurgedAt != nil {
		t.Error("purge ran with retention explicitly disabled")
	}
	if old.RecordingRef == nil {
		t.Error("recording ref lost with retention disabled")
	}
}

func TestStartPurgeTickerStopsOnCancel(t *testing.T) {
	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sysConfig, err := database.NewSystemConfigRepository(ctx, db)
	if err != nil {
		t.Fatalf("sysconfig: %v", err)
	}
	sessions := database.NewCallSessionRepository(db)

	StartPurgeTicker(ctx, sessions, sysConfig, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()
	// Nothing to assert beyond not panicking; the goroutine exits on
	// context cancellation.
	time.Sleep(20 * time.Millisecond)
}
