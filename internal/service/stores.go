package service

import (
	"context"
	"time"

	"smartcampus/api/internal/models"
)

// UserStore is satisfied by *repository.UserRepository. Implementations
// report a missing row as repository.ErrUserNotFound and a uniqueness clash
// as repository.ErrDuplicateUser.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	List(ctx context.Context, limit int, offset int) ([]models.User, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, id string, update models.UserUpdate) (models.User, error)
	Delete(ctx context.Context, id string) error
}

type RoleStore interface {
	GetByID(ctx context.Context, id models.RoleID) (models.Role, error)
}

// TokenStore is satisfied by *repository.TokenRepository. Consume must delete
// the token only if its hash is unchanged and it is unexpired at now, and
// apply the effect in the same atomic step.
type TokenStore interface {
	Upsert(ctx context.Context, tok models.PendingToken) error
	Get(ctx context.Context, userID string, purpose models.TokenPurpose) (models.PendingToken, error)
	Consume(ctx context.Context, tok models.PendingToken, now time.Time, effect models.TokenEffect) error
	DeleteExpiredFor(ctx context.Context, userID string, purpose models.TokenPurpose, now time.Time) error
}

// LoginLimiter is satisfied by *cache.LoginThrottle.
type LoginLimiter interface {
	Allowed(ctx context.Context, username string) (bool, error)
	RecordFailure(ctx context.Context, username string) error
	Reset(ctx context.Context, username string) error
}
