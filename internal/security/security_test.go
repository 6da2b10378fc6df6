package security

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcampus/api/internal/config"
)

// cheap parameters keep the suite fast; the encoding is identical.
var testParams = Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func TestArgon2Hasher_RoundTrip(t *testing.T) {
	h := NewArgon2Hasher(testParams)

	digest, err := h.Hash("Sup3r$ecret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(digest), "$argon2id$v=19$m=1024,t=1,p=1$"))
	assert.NotContains(t, string(digest), "Sup3r$ecret")

	ok, err := h.Verify("Sup3r$ecret", digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("Sup3r$ecreT", digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2Hasher_SaltIsRandom(t *testing.T) {
	h := NewArgon2Hasher(testParams)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestArgon2Hasher_Errors(t *testing.T) {
	h := NewArgon2Hasher(testParams)

	_, err := h.Hash("")
	require.ErrorIs(t, err, ErrEmptyPassword)

	for _, digest := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=0$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$",
	} {
		ok, err := h.Verify("anything", []byte(digest))
		assert.False(t, ok, digest)
		assert.ErrorIs(t, err, ErrInvalidHash, digest)
	}
}

func TestParamsFromConfig(t *testing.T) {
	assert.Equal(t, DefaultArgon2Params, ParamsFromConfig(config.Argon2Config{}))

	p := ParamsFromConfig(config.Argon2Config{Time: 4, Threads: 8})
	assert.Equal(t, uint32(4), p.Time)
	assert.Equal(t, uint8(8), p.Threads)
	assert.Equal(t, DefaultArgon2Params.Memory, p.Memory)
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)

	raw, err := hex.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, SecretBytes)
	assert.NotEqual(t, a, b)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestSessionIssuer(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	issuer, err := NewSessionIssuer("k3y", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)

	token, issued, err := issuer.Issue("alice")
	require.NoError(t, err)
	assert.True(t, clock.t.Add(time.Hour).Equal(issued.ExpiresAt.Time))

	t.Run("round trip", func(t *testing.T) {
		claims, err := issuer.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Username)
		assert.True(t, clock.t.Equal(claims.IssuedAt.Time))
	})

	t.Run("expired after ttl", func(t *testing.T) {
		later := &fakeClock{t: clock.t.Add(time.Hour)}
		verifier, err := NewSessionIssuer("k3y", time.Hour, WithClock(later.Now))
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		require.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("tampered signature", func(t *testing.T) {
		sig := strings.LastIndex(token, ".") + 1
		swap := byte('A')
		if token[sig] == 'A' {
			swap = 'B'
		}
		tampered := token[:sig] + string(swap) + token[sig+1:]

		_, err := issuer.Verify(tampered)
		require.ErrorIs(t, err, ErrSessionInvalid)
	})

	t.Run("other key", func(t *testing.T) {
		other, err := NewSessionIssuer("different", time.Hour, WithClock(clock.Now))
		require.NoError(t, err)

		_, err = other.Verify(token)
		require.ErrorIs(t, err, ErrSessionInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Verify("not.a.jwt")
		require.ErrorIs(t, err, ErrSessionInvalid)
	})
}

func TestNewSessionIssuer_Validation(t *testing.T) {
	_, err := NewSessionIssuer("", time.Hour)
	require.Error(t, err)

	_, err = NewSessionIssuer("k", 0)
	require.Error(t, err)
}
