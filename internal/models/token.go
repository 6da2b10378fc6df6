package models

import "time"

type TokenPurpose string

const (
	TokenPurposeEmailVerify   TokenPurpose = "email_verify"
	TokenPurposePasswordReset TokenPurpose = "password_reset"
)

func (p TokenPurpose) Valid() bool {
	return p == TokenPurposeEmailVerify || p == TokenPurposePasswordReset
}

// PendingToken is the hashed-at-rest half of a single-use secret. There is at
// most one per (UserID, Purpose); Hash and ExpiresAt are always set together.
type PendingToken struct {
	UserID    string
	Purpose   TokenPurpose
	Hash      []byte
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t PendingToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenEffect is applied to the owning user in the same transaction that
// deletes the token.
type TokenEffect struct {
	VerifyEmail     bool
	NewPasswordHash []byte
}
