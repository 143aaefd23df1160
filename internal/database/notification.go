package database

import (
	"context"
	"fmt"

	"github.com/callgreet/callgreet/internal/database/models"
)

// notificationRepo implements NotificationRepository.
type notificationRepo struct {
	db *DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *DB) NotificationRepository {
	return &notificationRepo{db: db}
}

// MarkSent records the delivery. The UNIQUE(call_id) constraint means a
// second mark for the same call is ignored and reported as false, which
// is how redelivered terminal callbacks avoid double-sending.
func (r *notificationRepo) MarkSent(ctx context.Context, mark *models.NotificationMark) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO notification_marks (id, call_id, recipient) VALUES (?, ?, ?)`,
		mark.ID, mark.CallID, mark.Recipient,
	)
	if err != nil {
		return false, fmt.Errorf("inserting notification mark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking notification insert: %w", err)
	}
	return n > 0, nil
}

// Count returns the total number of dispatched notifications.
func (r *notificationRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_marks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting notification marks: %w", err)
	}
	return n, nil
}
