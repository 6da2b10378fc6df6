// Package servicetest provides in-memory stand-ins for the stores, mailer
// and login limiter used by the service layer.
package servicetest

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"smartcampus/api/internal/mail"
	"smartcampus/api/internal/models"
	"smartcampus/api/internal/repository"
	"smartcampus/api/internal/security"
)

// FastHasher is argon2id with parameters cheap enough for unit tests.
func FastHasher() *security.Argon2Hasher {
	return security.NewArgon2Hasher(security.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
}

type tokenKey struct {
	userID  string
	purpose models.TokenPurpose
}

// Store keeps users and pending tokens behind one mutex so Consume is atomic
// the same way the Postgres transaction is.
type Store struct {
	mu     sync.Mutex
	users  map[string]models.User
	tokens map[tokenKey]models.PendingToken
	seq    int

	// Err, when set, is returned by every call.
	Err error
}

func NewStore() *Store {
	return &Store{
		users:  make(map[string]models.User),
		tokens: make(map[tokenKey]models.PendingToken),
	}
}

// Put inserts or replaces user without uniqueness checks.
func (s *Store) Put(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.Role.Description == "" {
		user.Role.Description = user.Role.ID.String()
	}
	s.seq++
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Unix(int64(s.seq), 0).UTC()
	}
	s.users[user.ID] = user
}

func (s *Store) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email || u.ExternalID == user.ExternalID {
			return repository.ErrDuplicateUser
		}
	}
	s.seq++
	user.CreatedAt = time.Unix(int64(s.seq), 0).UTC()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = user
	return nil
}

func (s *Store) find(match func(models.User) bool) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return models.User{}, s.Err
	}
	for _, u := range s.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *Store) FindByUsername(_ context.Context, username string) (models.User, error) {
	return s.find(func(u models.User) bool { return u.Username == username })
}

func (s *Store) FindByEmail(_ context.Context, email string) (models.User, error) {
	return s.find(func(u models.User) bool { return u.Email == email })
}

func (s *Store) GetByID(_ context.Context, id string) (models.User, error) {
	return s.find(func(u models.User) bool { return u.ID == id })
}

func (s *Store) List(_ context.Context, limit int, offset int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	all := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return []models.User{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return len(s.users), nil
}

func (s *Store) Update(_ context.Context, id string, update models.UserUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return models.User{}, s.Err
	}
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	if update.Email != nil {
		for _, u := range s.users {
			if u.ID != id && u.Email == *update.Email {
				return models.User{}, repository.ErrDuplicateUser
			}
		}
		if user.Email != *update.Email {
			user.EmailVerified = false
		}
		user.Email = *update.Email
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	if update.Role != nil {
		if !update.Role.Valid() {
			return models.User{}, repository.ErrRoleNotFound
		}
		user.Role = models.Role{ID: *update.Role, Description: update.Role.String()}
	}
	s.users[id] = user
	return user, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(s.users, id)
	for key := range s.tokens {
		if key.userID == id {
			delete(s.tokens, key)
		}
	}
	return nil
}

func (s *Store) Upsert(_ context.Context, tok models.PendingToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.users[tok.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	s.tokens[tokenKey{tok.UserID, tok.Purpose}] = tok
	return nil
}

func (s *Store) Get(_ context.Context, userID string, purpose models.TokenPurpose) (models.PendingToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return models.PendingToken{}, s.Err
	}
	tok, ok := s.tokens[tokenKey{userID, purpose}]
	if !ok {
		return models.PendingToken{}, repository.ErrTokenNotFound
	}
	return tok, nil
}

func (s *Store) Consume(_ context.Context, tok models.PendingToken, now time.Time, effect models.TokenEffect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	key := tokenKey{tok.UserID, tok.Purpose}
	stored, ok := s.tokens[key]
	if !ok || string(stored.Hash) != string(tok.Hash) || stored.ExpiredAt(now) {
		return repository.ErrTokenConsumed
	}
	user, ok := s.users[tok.UserID]
	if !ok {
		return repository.ErrUserNotFound
	}

	delete(s.tokens, key)
	if effect.VerifyEmail {
		user.EmailVerified = true
	}
	if len(effect.NewPasswordHash) > 0 {
		user.PasswordHash = effect.NewPasswordHash
	}
	user.UpdatedAt = now
	s.users[user.ID] = user
	return nil
}

func (s *Store) DeleteExpiredFor(_ context.Context, userID string, purpose models.TokenPurpose, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	key := tokenKey{userID, purpose}
	if tok, ok := s.tokens[key]; ok && tok.ExpiredAt(now) {
		delete(s.tokens, key)
	}
	return nil
}

func (s *Store) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	for key, tok := range s.tokens {
		if tok.ExpiredAt(now) {
			delete(s.tokens, key)
			n++
		}
	}
	return n, nil
}

// PendingTokens returns how many tokens are stored.
func (s *Store) PendingTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Roles serves the default role set.
type Roles struct{}

func (Roles) GetByID(_ context.Context, id models.RoleID) (models.Role, error) {
	if !id.Valid() {
		return models.Role{}, repository.ErrRoleNotFound
	}
	return models.Role{ID: id, Description: id.String()}, nil
}

// Mailer records every message instead of sending it.
type Mailer struct {
	mu   sync.Mutex
	sent []mail.Message

	Err error
}

func (m *Mailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *Mailer) Sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

// Last returns the most recent message to addr, if any.
func (m *Mailer) Last(addr string) (mail.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if strings.EqualFold(m.sent[i].To, addr) {
			return m.sent[i], true
		}
	}
	return mail.Message{}, false
}

var secretPattern = regexp.MustCompile(`\b[0-9a-f]{64}\b`)

// SecretIn extracts the hex secret carried by a verification or reset mail.
func SecretIn(msg mail.Message) string {
	return secretPattern.FindString(msg.Body)
}

// Limiter is an in-memory login throttle.
type Limiter struct {
	mu       sync.Mutex
	failures map[string]int

	Max int
}

func (l *Limiter) Allowed(_ context.Context, username string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Max <= 0 {
		return true, nil
	}
	return l.failures[strings.ToLower(username)] < l.Max, nil
}

func (l *Limiter) RecordFailure(_ context.Context, username string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failures == nil {
		l.failures = make(map[string]int)
	}
	l.failures[strings.ToLower(username)]++
	return nil
}

func (l *Limiter) Reset(_ context.Context, username string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, strings.ToLower(username))
	return nil
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
