package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// VerificationTokenRepo persists the single-use tokens emailed to users
// for email verification and password resets.
type VerificationTokenRepo struct{ DB *sql.DB }

func NewVerificationTokenRepo(db *sql.DB) *VerificationTokenRepo {
	return &VerificationTokenRepo{DB: db}
}

// Issue creates a fresh token for the user and purpose and returns the
// opaque token value to embed in the emailed link.  Any previous unused
// tokens for the same purpose are invalidated so only the newest link
// works.
func (r *VerificationTokenRepo) Issue(ctx context.Context, userID uint64, purpose string, ttl time.Duration) (string, error) {
	tok := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		"UPDATE verification_tokens SET used_at=NOW() WHERE user_id=? AND purpose=? AND used_at IS NULL",
		userID, purpose)
	if err != nil {
		return "", err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO verification_tokens (user_id, token, purpose, expires_at) VALUES (?,?,?,?)",
		userID, tok, purpose, time.Now().UTC().Add(ttl))
	if err != nil {
		return "", err
	}
	return tok, nil
}

// Consume validates a token for the given purpose and marks it used.
// Expired, already-used or unknown tokens return sql.ErrNoRows.
func (r *VerificationTokenRepo) Consume(ctx context.Context, token, purpose string) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
		usedAt    sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at, used_at FROM verification_tokens WHERE token=? AND purpose=? LIMIT 1",
		token, purpose).Scan(&userID, &expiresAt, &usedAt)
	if err != nil {
		return 0, err
	}
	if usedAt.Valid || time.Now().UTC().After(expiresAt) {
		return 0, sql.ErrNoRows
	}
	// Single use: consuming twice must fail, so guard the update the same way.
	res, err := r.DB.ExecContext(ctx,
		"UPDATE verification_tokens SET used_at=NOW() WHERE token=? AND used_at IS NULL", token)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, sql.ErrNoRows
	}
	return userID, nil
}
