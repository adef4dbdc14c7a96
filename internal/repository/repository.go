package repository

import (
	"context"
	"time"

	"github.com/quick-fold/quickfold-customer-app/internal/domain"
)

// UserRepository defines persistence for users. Implementations enforce email
// uniqueness in storage and report it as domain.ErrDuplicateEmail.
type UserRepository interface {
	// Create inserts u and fills in its ID and timestamps.
	Create(ctx context.Context, u *domain.User) error

	GetByID(ctx context.Context, id int64) (*domain.User, error)

	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update writes the profile fields of u. Email, role and password hash are untouched.
	Update(ctx context.Context, u *domain.User) error

	UpdatePassword(ctx context.Context, id int64, hash string) error

	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error

	// List returns users ordered by id.
	List(ctx context.Context, offset, limit int) ([]domain.User, error)

	Count(ctx context.Context) (int, error)
}
