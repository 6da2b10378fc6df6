package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginFailurePrefix = "login:failures:"

// LoginThrottle counts failed logins per username in Redis. Once maxFailures
// is reached the username is locked until the counter's window expires. The
// key does not depend on whether the username exists.
type LoginThrottle struct {
	client      redis.Cmdable
	maxFailures int64
	window      time.Duration
}

func NewLoginThrottle(client redis.Cmdable, maxFailures int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{
		client:      client,
		maxFailures: int64(maxFailures),
		window:      window,
	}
}

func failureKey(username string) string {
	return loginFailurePrefix + strings.ToLower(strings.TrimSpace(username))
}

// Allowed reports whether another login attempt may be made for username.
func (t *LoginThrottle) Allowed(ctx context.Context, username string) (bool, error) {
	if t.maxFailures <= 0 {
		return true, nil
	}
	n, err := t.client.Get(ctx, failureKey(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return true, nil
		}
		return false, fmt.Errorf("read login failures: %w", err)
	}
	return n < t.maxFailures, nil
}

// RecordFailure bumps the failure counter. The window starts at the first
// failure and is not extended by later ones. The counter is created with its
// TTL in the same transaction as the increment, so it can never outlive the
// window.
func (t *LoginThrottle) RecordFailure(ctx context.Context, username string) error {
	key := failureKey(username)
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, t.window)
		pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	return nil
}

func (t *LoginThrottle) Reset(ctx context.Context, username string) error {
	return t.client.Del(ctx, failureKey(username)).Err()
}
