package repository

import (
	"context"
	"errors"

	"github.com/dzakira/authcore/internal/domain/entity"
)

var (
	// ErrDuplicate is returned by Create when the username or email is
	// already taken. Uniqueness is enforced by the storage engine itself,
	// not by a check-then-insert, so concurrent creates cannot race past it.
	ErrDuplicate = errors.New("username or email already exists")

	// ErrNotFound is returned when no record matches the lookup key.
	ErrNotFound = errors.New("user not found")
)

// UserRepository defines the persistence contract for user records.
type UserRepository interface {
	// Create inserts a new record and fills in the store-assigned ID and
	// CreatedAt. Returns ErrDuplicate on a username or email collision.
	Create(ctx context.Context, u *entity.UserRecord) error

	GetByUsername(ctx context.Context, username string) (*entity.UserRecord, error)
	GetByEmail(ctx context.Context, email string) (*entity.UserRecord, error)

	// ListEnrolled returns every record that has a face template, for the
	// full-table scan in biometric identification.
	ListEnrolled(ctx context.Context) ([]*entity.UserRecord, error)

	// ReplaceFaceTemplate overwrites the stored template in a single
	// statement. Returns ErrNotFound when the username does not exist.
	ReplaceFaceTemplate(ctx context.Context, username string, template []byte) error
}
