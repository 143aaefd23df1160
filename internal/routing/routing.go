// Package routing decides, per call, whether the caller is bridged to a
// live human or handed to AI-assisted intake, and resolves the
// destination after the IVR menu. The fail-open/fail-closed behavior is
// an explicit policy value so both branches are deterministically
// testable rather than scattered runtime checks.
package routing

import (
	"context"
	"strconv"
	"time"

	"github.com/callgreet/callgreet/internal/call"
	"github.com/callgreet/callgreet/internal/database"
)

// PickupMode selects how an inbound call is answered.
type PickupMode string

const (
	// PickupImmediate skips the bridge attempt and goes straight to
	// assisted intake.
	PickupImmediate PickupMode = "immediate"
	// PickupAfterRings rings the human line first and falls back to
	// assisted intake when it rings out.
	PickupAfterRings PickupMode = "after_rings"
)

// FailPolicy governs behavior when a dependency (the session store) is
// unavailable mid-call. Telephony favors fail-open: proceeding with a
// degraded audit trail beats dropping a live caller.
type FailPolicy string

const (
	FailOpen   FailPolicy = "open"
	FailClosed FailPolicy = "closed"
)

// SecondsPerRing approximates one ring cycle on the PSTN.
const SecondsPerRing = 6

// Defaults applied when system config is unset.
const (
	defaultRings         = 2
	defaultRetentionDays = 30
)

// Config is the routing configuration resolved from system config at the
// time a decision is made.
type Config struct {
	PickupMode       PickupMode
	Rings            int
	MachineDetection bool
	Policy           FailPolicy
	HumanLine        string // E.164 bridge/handoff destination
	DefaultLanguage  string
	RetentionDays    int
}

// RingSeconds is the answer threshold for the bridge attempt.
func (c Config) RingSeconds() int {
	return c.Rings * SecondsPerRing
}

// LoadConfig resolves routing configuration from the system config
// store, applying defaults for unset keys.
func LoadConfig(ctx context.Context, sys database.SystemConfigRepository) (Config, error) {
	cfg := Config{
		PickupMode:      PickupAfterRings,
		Rings:           defaultRings,
		Policy:          FailOpen,
		DefaultLanguage: "en",
		RetentionDays:   defaultRetentionDays,
	}

	if v, err := sys.Get(ctx, database.KeyPickupMode); err != nil {
		return cfg, err
	} else if v == string(PickupImmediate) {
		cfg.PickupMode = PickupImmediate
	}

	if v, _ := sys.Get(ctx, database.KeyPickupRings); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Rings = n
		}
	}
	if v, _ := sys.Get(ctx, database.KeyMachineDetect); v == "on" {
		cfg.MachineDetection = true
	}
	if v, _ := sys.Get(ctx, database.KeyFailPolicy); v == string(FailClosed) {
		cfg.Policy = FailClosed
	}
	if v, _ := sys.Get(ctx, database.KeyHumanLine); v != "" {
		cfg.HumanLine = v
	}
	if v, _ := sys.Get(ctx, database.KeyDefaultLanguage); v != "" {
		cfg.DefaultLanguage = v
	}
	if v, _ := sys.Get(ctx, database.KeyRetentionDays); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetentionDays = n
		}
	}
	return cfg, nil
}

// RetentionWindow is the purge age cutoff as a duration.
func (c Config) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// DecideAnswer resolves the call mode from the outcome of the bridge
// attempt. A human answering the bridged leg within the ring threshold
// yields bridge mode. Ring-out, busy, failure, and a machine greeting
// when detection is on all yield assisted mode.
func (c Config) DecideAnswer(dialStatus call.CarrierStatus, answeredBy call.AnsweredBy, answerAfter time.Duration) call.Mode {
	if dialStatus != call.StatusCompleted && dialStatus != call.StatusInProgress {
		return call.ModeAssisted
	}
	if c.MachineDetection && answeredBy == call.AnsweredByMachine {
		return call.ModeAssisted
	}
	if answerAfter > time.Duration(c.RingSeconds())*time.Second {
		return call.ModeAssisted
	}
	return call.ModeBridge
}
