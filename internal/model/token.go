package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and carries metadata for expiry and
// revocation.  The plain token is not stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// Verification token purposes.
const (
	TokenPurposeVerifyEmail   = "verify_email"
	TokenPurposeResetPassword = "reset_password"
)

// VerificationToken models an entry in the `verification_tokens` table:
// an ephemeral opaque token emailed to a user for email verification or a
// password reset.  A token is single-use; UsedAt records consumption.
type VerificationToken struct {
	ID        uint64     // verification_tokens.id
	UserID    uint64     // verification_tokens.user_id
	Token     string     // verification_tokens.token (opaque UUID)
	Purpose   string     // verification_tokens.purpose
	ExpiresAt time.Time  // verification_tokens.expires_at
	UsedAt    *time.Time // verification_tokens.used_at (nullable)
	CreatedAt time.Time  // verification_tokens.created_at
}
