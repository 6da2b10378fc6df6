package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"smartcampus/api/internal/config"
	"smartcampus/api/internal/models"
	"smartcampus/api/internal/security"
	"smartcampus/api/internal/service/servicetest"
)

type harness struct {
	store        *servicetest.Store
	mailer       *servicetest.Mailer
	limiter      *servicetest.Limiter
	clock        *servicetest.Clock
	hasher       security.PasswordHasher
	sessions     *security.SessionIssuer
	verification *VerificationService
	auth         *AuthService
	admin        *UserService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:   servicetest.NewStore(),
		mailer:  &servicetest.Mailer{},
		limiter: &servicetest.Limiter{Max: 5},
		clock:   servicetest.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		hasher:  servicetest.FastHasher(),
	}

	sessions, err := security.NewSessionIssuer("test-signing-key", time.Hour, security.WithClock(h.clock.Now))
	require.NoError(t, err)
	h.sessions = sessions

	cfg := config.SecurityConfig{VerifyTokenTTL: 24 * time.Hour, ResetTokenTTL: time.Hour}
	h.verification = NewVerificationService(h.store, h.store, h.hasher, cfg, zerolog.Nop(),
		WithVerificationClock(h.clock.Now))
	h.auth = NewAuthService(h.store, servicetest.Roles{}, h.verification, h.hasher, h.sessions,
		h.mailer, h.limiter, zerolog.Nop())
	h.admin = NewUserService(h.store, zerolog.Nop())
	return h
}

func registerInput(username string) RegisterInput {
	return RegisterInput{
		ExternalID: username + "-id",
		Username:   username,
		Email:      username + "@campus.test",
		FirstName:  "First",
		LastName:   "Last",
		Phone:      "0501234567",
		Password:   "Passw0rd!",
	}
}

// register creates a user through the public flow and returns it with the
// verification secret that was mailed.
func (h *harness) register(t *testing.T, username string) (models.User, string) {
	t.Helper()
	user, err := h.auth.Register(context.Background(), registerInput(username))
	require.NoError(t, err)
	msg, ok := h.mailer.Last(user.Email)
	require.True(t, ok, "verification mail not sent")
	secret := servicetest.SecretIn(msg)
	require.NotEmpty(t, secret)
	return user, secret
}

// registerVerified registers username and completes email verification.
func (h *harness) registerVerified(t *testing.T, username string) models.User {
	t.Helper()
	user, secret := h.register(t, username)
	verified, err := h.auth.VerifyEmail(context.Background(), user.Email, secret)
	require.NoError(t, err)
	return verified
}
