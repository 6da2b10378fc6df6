package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrSessionInvalid = errors.New("invalid session token")
	ErrSessionExpired = errors.New("session token expired")
)

type SessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SessionIssuer signs and verifies stateless session tokens. The key is fixed
// for the lifetime of the process; there is no server-side revocation.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type SessionOption func(*SessionIssuer)

func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionIssuer) {
		s.now = now
	}
}

func NewSessionIssuer(secret string, ttl time.Duration, opts ...SessionOption) (*SessionIssuer, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}

	s := &SessionIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}

func (s *SessionIssuer) Issue(username string) (string, SessionClaims, error) {
	now := s.now()
	claims := SessionClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", SessionClaims{}, fmt.Errorf("sign jwt: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature and expiry. Every failure is either ErrSessionExpired
// or ErrSessionInvalid; callers reject both the same way.
func (s *SessionIssuer) Verify(tokenStr string) (SessionClaims, error) {
	var claims SessionClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, ErrSessionExpired
		}
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	if !token.Valid || claims.Username == "" {
		return SessionClaims{}, ErrSessionInvalid
	}
	return claims, nil
}
