package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/callgreet/callgreet/internal/database/models"
)

// consentRepo implements ConsentRepository.
type consentRepo struct {
	db *DB
}

// NewConsentRepository creates a new ConsentRepository.
func NewConsentRepository(db *DB) ConsentRepository {
	return &consentRepo{db: db}
}

// HashCallerNumber returns the one-way hash stored in consent rows in
// place of the raw caller number.
func HashCallerNumber(number string) string {
	sum := sha256.Sum256([]byte(number))
	return hex.EncodeToString(sum[:])
}

// Record appends a consent decision. The UNIQUE(call_id, status)
// constraint dedupes webhook redelivery; inserted reports whether this
// call wrote a new audit row.
func (r *consentRepo) Record(ctx context.Context, rec *models.ConsentRecord) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO consent_records
		 (call_id, caller_hash, status, language, digit_input)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.CallID, rec.CallerHash, rec.Status, rec.Language, rec.DigitInput,
	)
	if err != nil {
		return false, fmt.Errorf("inserting consent record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking consent insert: %w", err)
	}
	return n > 0, nil
}

// ListByCallID returns the consent audit trail for a call, oldest first.
func (r *consentRepo) ListByCallID(ctx context.Context, callID string) ([]models.ConsentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, call_id, caller_hash, status, language, digit_input, created_at
		 FROM consent_records WHERE call_id = ? ORDER BY created_at`, callID)
	if err != nil {
		return nil, fmt.Errorf("listing consent records: %w", err)
	}
	defer rows.Close()

	var records []models.ConsentRecord
	for rows.Next() {
		var rec models.ConsentRecord
		if err := rows.Scan(&rec.ID, &rec.CallID, &rec.CallerHash, &rec.Status,
			&rec.Language, &rec.DigitInput, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning consent record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByStatus returns consent decision counts grouped by status.
func (r *consentRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM consent_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting consent records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning consent count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
