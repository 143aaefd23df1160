package postcall

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/callgreet/callgreet/internal/database"
)

// PurgeReasonRetention is recorded on rows purged by the retention ticker.
const PurgeReasonRetention = "retention"

// defaultRetentionDays applies when retention_days was never configured.
// An explicit 0 disables the purge.
const defaultRetentionDays = 30

// StartPurgeTicker runs a background goroutine that periodically purges
// recording and transcript references from sessions that ended more than
// retention_days ago. An unset retention_days falls back to the 30-day
// default; an explicit 0 disables the purge. The goroutine stops when
// the provided context is cancelled.
func StartPurgeTicker(ctx context.Context, sessions database.CallSessionRepository, sysConfig database.SystemConfigRepository, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				RunPurge(ctx, sessions, sysConfig)
			}
		}
	}()
}

// RunPurge executes one retention pass. Split out of the ticker so the
// admin API can trigger it on demand.
func RunPurge(ctx context.Context, sessions database.CallSessionRepository, sysConfig database.SystemConfigRepository) {
	daysStr, err := sysConfig.Get(ctx, database.KeyRetentionDays)
	if err != nil {
		slog.Error("retention purge: failed to read setting", "error", err)
		return
	}
	days := defaultRetentionDays
	if daysStr != "" {
		days, err = strconv.Atoi(daysStr)
		if err != nil {
			slog.Warn("retention purge: invalid retention_days", "value", daysStr)
			return
		}
	}
	if days <= 0 {
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	purged, err := sessions.PurgeExpired(ctx, cutoff, PurgeReasonRetention)
	if err != nil {
		slog.Error("retention purge failed", "error", err)
		return
	}
	if len(purged) == 0 {
		return
	}

	slog.Info("retention purge", "purged", len(purged), "retention_days", days)
}
