package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"smartcampus/api/internal/config"
	"smartcampus/api/internal/metrics"
	"smartcampus/api/internal/models"
	"smartcampus/api/internal/repository"
	"smartcampus/api/internal/security"
)

// VerificationService runs the single-use token protocol shared by email
// verification and password reset. Only a hash of each secret is stored.
type VerificationService struct {
	users  UserStore
	tokens TokenStore
	hasher security.PasswordHasher
	ttls   map[models.TokenPurpose]time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

type VerificationOption func(*VerificationService)

func WithVerificationClock(now func() time.Time) VerificationOption {
	return func(s *VerificationService) {
		s.now = now
	}
}

func NewVerificationService(
	users UserStore,
	tokens TokenStore,
	hasher security.PasswordHasher,
	cfg config.SecurityConfig,
	log zerolog.Logger,
	opts ...VerificationOption,
) *VerificationService {
	s := &VerificationService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		ttls: map[models.TokenPurpose]time.Duration{
			models.TokenPurposeEmailVerify:   cfg.VerifyTokenTTL,
			models.TokenPurposePasswordReset: cfg.ResetTokenTTL,
		},
		now: time.Now,
		log: log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *VerificationService) TTL(purpose models.TokenPurpose) time.Duration {
	return s.ttls[purpose]
}

// Initiate issues a fresh secret for user and purpose, replacing any earlier
// one. The returned plaintext is meant for out-of-band delivery only.
func (s *VerificationService) Initiate(ctx context.Context, user models.User, purpose models.TokenPurpose) (string, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("%w: unknown token purpose %q", ErrValidation, purpose)
	}

	secret, err := security.GenerateSecret()
	if err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}

	tok := models.PendingToken{
		UserID:    user.ID,
		Purpose:   purpose,
		Hash:      hash,
		ExpiresAt: s.now().Add(s.ttls[purpose]),
	}
	if err := s.tokens.Upsert(ctx, tok); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("store token: %w", err)
	}

	metrics.RecordAuth(metrics.EventTokenIssued, string(purpose))
	s.log.Info().
		Str("user_id", user.ID).
		Str("purpose", string(purpose)).
		Time("expires_at", tok.ExpiresAt).
		Msg("pending token issued")
	return secret, nil
}

// Consume checks secret against the pending token of purpose for the user
// registered under email and, if it matches, deletes the token and applies
// effect atomically. It returns the user with effect applied.
func (s *VerificationService) Consume(
	ctx context.Context,
	email string,
	secret string,
	purpose models.TokenPurpose,
	effect models.TokenEffect,
) (models.User, error) {
	if !purpose.Valid() {
		return models.User{}, fmt.Errorf("%w: unknown token purpose %q", ErrValidation, purpose)
	}
	if !effect.VerifyEmail && len(effect.NewPasswordHash) == 0 {
		return models.User{}, fmt.Errorf("%w: empty token effect", ErrValidation)
	}

	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}

	now := s.now()
	log := s.log.With().Str("user_id", user.ID).Str("purpose", string(purpose)).Logger()

	tok, err := s.tokens.Get(ctx, user.ID, purpose)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			log.Info().Msg("consume without pending token")
			return models.User{}, ErrExpired
		}
		return models.User{}, fmt.Errorf("load token: %w", err)
	}
	if tok.ExpiredAt(now) {
		if err := s.tokens.DeleteExpiredFor(ctx, user.ID, purpose, now); err != nil {
			log.Warn().Err(err).Msg("drop expired token failed")
		}
		log.Info().Msg("consume of expired token")
		return models.User{}, ErrExpired
	}

	ok, err := s.hasher.Verify(secret, tok.Hash)
	if err != nil || !ok {
		log.Warn().Msg("token mismatch")
		return models.User{}, ErrInvalidToken
	}

	if err := s.tokens.Consume(ctx, tok, now, effect); err != nil {
		switch {
		case errors.Is(err, repository.ErrTokenConsumed):
			log.Warn().Msg("token consumed concurrently")
			return models.User{}, ErrInvalidToken
		case errors.Is(err, repository.ErrUserNotFound):
			return models.User{}, ErrNotFound
		default:
			return models.User{}, fmt.Errorf("consume token: %w", err)
		}
	}

	if effect.VerifyEmail {
		user.EmailVerified = true
	}
	if len(effect.NewPasswordHash) > 0 {
		user.PasswordHash = effect.NewPasswordHash
	}
	user.UpdatedAt = now

	log.Info().Msg("pending token consumed")
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
