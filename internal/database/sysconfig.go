package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/callgreet/callgreet/internal/database/models"
)

// Well-known system config keys.
const (
	KeyPickupMode      = "pickup_mode"       // "immediate" | "after_rings"
	KeyPickupRings     = "pickup_rings"      // ring count before assisted takeover
	KeyMachineDetect   = "machine_detection" // "on" | "off"
	KeyFailPolicy      = "fail_policy"       // "open" | "closed"
	KeyRetentionDays   = "retention_days"
	KeyHumanLine       = "human_line"      // E.164 destination for bridge/handoff
	KeyNotifyRecipient = "notify_email"    // post-call notification recipient
	KeyDefaultLanguage = "default_language" // IVR locale
)

// sysConfigRepo implements SystemConfigRepository with a write-through
// in-memory cache, loaded once at startup.
type sysConfigRepo struct {
	db    *DB
	mu    sync.RWMutex
	cache map[string]string
}

// NewSystemConfigRepository creates a SystemConfigRepository and primes
// its cache from the database.
func NewSystemConfigRepository(ctx context.Context, db *DB) (SystemConfigRepository, error) {
	repo := &sysConfigRepo{db: db, cache: make(map[string]string)}

	rows, err := db.QueryContext(ctx, "SELECT key, value FROM system_config")
	if err != nil {
		return nil, fmt.Errorf("loading system config: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning system config: %w", err)
		}
		repo.cache[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Get returns the value for key, or empty string if unset.
func (r *sysConfigRepo) Get(_ context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache[key], nil
}

// Set upserts the key in both the database and the cache.
func (r *sysConfigRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO system_config (key, value, updated_at)
		 VALUES (?, ?, datetime('now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("setting config %q: %w", key, err)
	}

	r.mu.Lock()
	r.cache[key] = value
	r.mu.Unlock()
	return nil
}

// GetAll returns all config entries ordered by key.
func (r *sysConfigRepo) GetAll(ctx context.Context) ([]models.SystemConfig, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, key, value, updated_at FROM system_config ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("querying system config: %w", err)
	}
	defer rows.Close()

	var configs []models.SystemConfig
	for rows.Next() {
		var c models.SystemConfig
		if err := rows.Scan(&c.ID, &c.Key, &c.Value, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning system config row: %w", err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}
