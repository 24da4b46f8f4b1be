package entity

import (
	"time"
)

// UserRecord is the aggregate root for the authentication domain.
// A record is valid only while it carries at least one usable credential:
// a bcrypt password hash, an enrolled face template, or a federation
// provider tag. The storage layer backs that invariant with a CHECK
// constraint so a partial write cannot produce a credential-less account.
type UserRecord struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // empty for pure-biometric or pure-federated accounts
	FaceTemplate []byte // opaque encoded descriptor, nil when not enrolled
	AuthProvider string // e.g. "google", empty for local accounts
	CreatedAt    time.Time
}

// HasPassword reports whether the record can be verified by password.
func (u *UserRecord) HasPassword() bool {
	return u.PasswordHash != ""
}

// HasFaceTemplate reports whether the record is enrolled for biometric login.
func (u *UserRecord) HasFaceTemplate() bool {
	return len(u.FaceTemplate) > 0
}
