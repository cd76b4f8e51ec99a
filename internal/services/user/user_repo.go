package user

import (
	"context"
	"errors"

	"github.com/curaious/fabricqr/internal/db"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicateUsername    = errors.New("username already exists")
	ErrDuplicateEmail       = errors.New("email already exists")
	ErrDuplicateFederatedID = errors.New("federated id already exists")
)

// UserRepo is the credential store. Implementations enforce uniqueness of
// username, email and federated id and report violations with the
// ErrDuplicate* errors.
type UserRepo interface {
	// Create assigns ID, CreatedAt and UpdatedAt on success.
	Create(ctx context.Context, u *User) error
	// Update replaces the stored record with the same ID and refreshes UpdatedAt.
	Update(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByFederatedID(ctx context.Context, federatedID string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Ping(ctx context.Context) error
}

// unavailableRepo backs the service when no database was configured; every
// call fails so the server can still start.
type unavailableRepo struct{}

func NewUnavailableRepo() UserRepo {
	return unavailableRepo{}
}

func (unavailableRepo) Create(context.Context, *User) error { return db.ErrNotConfigured }
func (unavailableRepo) Update(context.Context, *User) error { return db.ErrNotConfigured }
func (unavailableRepo) GetByID(context.Context, string) (*User, error) {
	return nil, db.ErrNotConfigured
}
func (unavailableRepo) GetByUsername(context.Context, string) (*User, error) {
	return nil, db.ErrNotConfigured
}
func (unavailableRepo) GetByFederatedID(context.Context, string) (*User, error) {
	return nil, db.ErrNotConfigured
}
func (unavailableRepo) List(context.Context) ([]*User, error) { return nil, db.ErrNotConfigured }
func (unavailableRepo) Ping(context.Context) error           { return db.ErrNotConfigured }
