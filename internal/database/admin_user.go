package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/callgreet/callgreet/internal/database/models"
)

// adminUserRepo implements AdminUserRepository.
type adminUserRepo struct {
	db *DB
}

// NewAdminUserRepository creates a new AdminUserRepository.
func NewAdminUserRepository(db *DB) AdminUserRepository {
	return &adminUserRepo{db: db}
}

func (r *adminUserRepo) Create(ctx context.Context, user *models.AdminUser) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_users (username, password_hash) VALUES (?, ?)`,
		user.Username, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("inserting admin user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting admin user id: %w", err)
	}
	user.ID = id
	return nil
}

func (r *adminUserRepo) GetByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	var u models.AdminUser
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at, updated_at
		 FROM admin_users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying admin user: %w", err)
	}
	return &u, nil
}

func (r *adminUserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting admin users: %w", err)
	}
	return n, nil
}
