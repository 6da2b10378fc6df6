package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"smartcampus/api/internal/ids"
	"smartcampus/api/internal/mail"
	"smartcampus/api/internal/metrics"
	"smartcampus/api/internal/models"
	"smartcampus/api/internal/repository"
	"smartcampus/api/internal/security"
)

type AuthService struct {
	users        UserStore
	roles        RoleStore
	verification *VerificationService
	hasher       security.PasswordHasher
	sessions     *security.SessionIssuer
	mailer       mail.Mailer
	limiter      LoginLimiter
	log          zerolog.Logger

	decoyOnce sync.Once
	decoy     []byte
}

func NewAuthService(
	users UserStore,
	roles RoleStore,
	verification *VerificationService,
	hasher security.PasswordHasher,
	sessions *security.SessionIssuer,
	mailer mail.Mailer,
	limiter LoginLimiter,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:        users,
		roles:        roles,
		verification: verification,
		hasher:       hasher,
		sessions:     sessions,
		mailer:       mailer,
		limiter:      limiter,
		log:          log,
	}
}

type RegisterInput struct {
	ExternalID string
	Username   string
	Email      string
	FirstName  string
	LastName   string
	Phone      string
	Password   string
}

// Register stores a new Student and mails a verification secret. A mail
// failure is logged but does not undo the registration; the user can ask for
// a new secret.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = normalizeEmail(input.Email)
	if input.Username == "" || input.Email == "" {
		return models.User{}, fmt.Errorf("%w: username and email required", ErrValidation)
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, security.ErrEmptyPassword) {
			return models.User{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	role, err := s.roles.GetByID(ctx, models.RoleStudent)
	if err != nil {
		return models.User{}, fmt.Errorf("load student role: %w", err)
	}

	user := models.User{
		ID:           ids.New(),
		ExternalID:   strings.TrimSpace(input.ExternalID),
		Username:     input.Username,
		Email:        input.Email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Phone:        strings.TrimSpace(input.Phone),
		PasswordHash: passwordHash,
		Role:         role,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			metrics.RecordAuth(metrics.EventRegister, "conflict")
			return models.User{}, ErrConflict
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	metrics.RecordAuth(metrics.EventRegister, "success")
	s.log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user registered")

	if err := s.sendVerification(ctx, user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.User
}

// Login never reveals whether username exists: an unknown user and a wrong
// password both yield ErrInvalidCredentials after a full hash verification.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	log := s.log.With().Str("username", username).Logger()

	allowed, err := s.limiter.Allowed(ctx, username)
	if err != nil {
		log.Warn().Err(err).Msg("login throttle unavailable")
	} else if !allowed {
		metrics.RecordAuth(metrics.EventLogin, "throttled")
		log.Warn().Msg("login throttled")
		return LoginResult{}, ErrTooManyAttempts
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, fmt.Errorf("find user: %w", err)
		}
		_, _ = s.hasher.Verify(password, s.decoyHash())
		return LoginResult{}, s.loginFailed(ctx, log, username)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
	}
	if err != nil || !ok {
		return LoginResult{}, s.loginFailed(ctx, log, username)
	}

	token, claims, err := s.sessions.Issue(user.Username)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue session: %w", err)
	}
	if err := s.limiter.Reset(ctx, username); err != nil {
		log.Warn().Err(err).Msg("reset login throttle failed")
	}

	metrics.RecordAuth(metrics.EventLogin, "success")
	log.Info().Str("user_id", user.ID).Msg("login succeeded")
	return LoginResult{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      user,
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, log zerolog.Logger, username string) error {
	if err := s.limiter.RecordFailure(ctx, username); err != nil {
		log.Warn().Err(err).Msg("record login failure failed")
	}
	metrics.RecordAuth(metrics.EventLogin, "failure")
	log.Info().Msg("login rejected")
	return ErrInvalidCredentials
}

// decoyHash is verified against when the username is unknown so that both
// rejection paths cost one argon2 evaluation.
func (s *AuthService) decoyHash() []byte {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash("smartcampus-decoy-" + ids.New())
		if err != nil {
			s.log.Error().Err(err).Msg("build decoy hash failed")
			return
		}
		s.decoy = hash
	})
	return s.decoy
}

func (s *AuthService) VerifyEmail(ctx context.Context, email, secret string) (models.User, error) {
	user, err := s.verification.Consume(ctx, email, secret, models.TokenPurposeEmailVerify,
		models.TokenEffect{VerifyEmail: true})
	recordConsume(metrics.EventVerifyEmail, err)
	return user, err
}

// ResendVerification issues a new verification secret if email belongs to
// an unverified user. Unknown and already verified addresses are ignored.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.log.Debug().Msg("verification resend for unknown email")
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}
	if user.EmailVerified {
		s.log.Debug().Str("user_id", user.ID).Msg("verification resend for verified user")
		return nil
	}
	return s.sendVerification(ctx, user)
}

// ForgotPassword mails a reset secret if email belongs to a verified user.
// Every other case returns nil so callers cannot probe for accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.log.Debug().Msg("password reset for unknown email")
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}
	if !user.EmailVerified {
		s.log.Info().Str("user_id", user.ID).Msg("password reset for unverified email ignored")
		return nil
	}

	secret, err := s.verification.Initiate(ctx, user, models.TokenPurposePasswordReset)
	if err != nil {
		return err
	}
	msg := mail.PasswordResetMessage(user.Email, secret, s.verification.TTL(models.TokenPurposePasswordReset))
	s.deliver(ctx, user, msg)
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, email, secret, newPassword string) (models.User, error) {
	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, security.ErrEmptyPassword) {
			return models.User{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.verification.Consume(ctx, email, secret, models.TokenPurposePasswordReset,
		models.TokenEffect{NewPasswordHash: newHash})
	recordConsume(metrics.EventResetPassword, err)
	if err != nil {
		return models.User{}, err
	}

	if err := s.limiter.Reset(ctx, user.Username); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("reset login throttle failed")
	}
	return user, nil
}

func (s *AuthService) sendVerification(ctx context.Context, user models.User) error {
	secret, err := s.verification.Initiate(ctx, user, models.TokenPurposeEmailVerify)
	if err != nil {
		return err
	}
	msg := mail.VerificationMessage(user.Email, secret, s.verification.TTL(models.TokenPurposeEmailVerify))
	s.deliver(ctx, user, msg)
	return nil
}

// deliver hands msg to the mailer. The token is already stored, so a failed
// hand-off only costs the user a resend.
func (s *AuthService) deliver(ctx context.Context, user models.User, msg mail.Message) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Str("subject", msg.Subject).Msg("mail hand-off failed")
	}
}

func recordConsume(event string, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrExpired):
		outcome = "expired"
	case errors.Is(err, ErrInvalidToken):
		outcome = "invalid"
	case errors.Is(err, ErrNotFound):
		outcome = "unknown_user"
	default:
		outcome = "error"
	}
	metrics.RecordAuth(event, outcome)
}
