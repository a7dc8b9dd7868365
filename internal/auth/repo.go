package auth

import (
	"context"
	"database/sql"
	"time"
)

// Repository persists issued refresh tokens for rotation checks.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SaveRefreshToken stores a refresh token.
func (r *Repository) SaveRefreshToken(ctx context.Context, staffID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO staff_tokens (staff_id, token, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (staff_id, token) DO NOTHING
	`, staffID, token, expiresAt)
	return err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE staff_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}
