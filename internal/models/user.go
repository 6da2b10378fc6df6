package models

import "time"

// User is the persisted identity record. PasswordHash is an argon2id digest;
// the plaintext never reaches this struct.
type User struct {
	ID            string
	ExternalID    string
	Username      string
	Email         string
	FirstName     string
	LastName      string
	Phone         string
	PasswordHash  []byte
	Role          Role
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserUpdate carries the admin-editable fields. Nil fields are left untouched.
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Role      *RoleID
}
