package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"smartcampus/api/internal/models"
	"smartcampus/api/internal/repository"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// UserService backs the admin endpoints.
type UserService struct {
	users UserStore
	log   zerolog.Logger
}

func NewUserService(users UserStore, log zerolog.Logger) *UserService {
	return &UserService{users: users, log: log}
}

type UserPage struct {
	Users   []models.User
	Page    int
	PerPage int
	Total   int
}

// List returns one page of users. page starts at 1; out-of-range values are
// clamped rather than rejected.
func (s *UserService) List(ctx context.Context, page, perPage int) (UserPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	users, err := s.users.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return UserPage{}, fmt.Errorf("list users: %w", err)
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return UserPage{}, fmt.Errorf("count users: %w", err)
	}
	return UserPage{Users: users, Page: page, PerPage: perPage, Total: total}, nil
}

func (s *UserService) Count(ctx context.Context) (int, error) {
	total, err := s.users.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

type EditUserInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Role      *string
}

func (s *UserService) Update(ctx context.Context, id string, input EditUserInput) (models.User, error) {
	var update models.UserUpdate
	update.FirstName = trimmed(input.FirstName)
	update.LastName = trimmed(input.LastName)
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		update.Email = &email
	}
	if input.Role != nil {
		role, err := models.ParseRole(*input.Role)
		if err != nil {
			return models.User{}, fmt.Errorf("%w: %v %q", ErrValidation, err, *input.Role)
		}
		update.Role = &role
	}

	user, err := s.users.Update(ctx, id, update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return models.User{}, ErrNotFound
		case errors.Is(err, repository.ErrDuplicateUser):
			return models.User{}, ErrConflict
		case errors.Is(err, repository.ErrRoleNotFound):
			return models.User{}, fmt.Errorf("%w: role not seeded", ErrValidation)
		default:
			return models.User{}, fmt.Errorf("update user: %w", err)
		}
	}

	s.log.Info().Str("user_id", id).Str("role", user.Role.ID.String()).Msg("user updated by admin")
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info().Str("user_id", id).Msg("user deleted by admin")
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
