package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcampus/api/internal/models"
)

func sampleToken() models.PendingToken {
	return models.PendingToken{
		UserID:    "u1",
		Purpose:   models.TokenPurposePasswordReset,
		Hash:      []byte("$argon2id$tokenhash"),
		ExpiresAt: time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC),
		CreatedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestTokenRepository_UpsertAndGet(t *testing.T) {
	tok := sampleToken()

	mock := newMock(t)
	mock.ExpectExec(`ON CONFLICT \(user_id, purpose\)`).
		WithArgs(tok.UserID, "password_reset", tok.Hash, tok.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`FROM user_tokens`).
		WithArgs(tok.UserID, "password_reset").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "purpose", "token_hash", "expires_at", "created_at"}).
			AddRow(tok.UserID, "password_reset", tok.Hash, tok.ExpiresAt, tok.CreatedAt))
	mock.ExpectQuery(`FROM user_tokens`).
		WithArgs(tok.UserID, "email_verify").
		WillReturnError(pgx.ErrNoRows)

	repo := NewTokenRepository(mock)
	require.NoError(t, repo.Upsert(context.Background(), tok))

	got, err := repo.Get(context.Background(), tok.UserID, models.TokenPurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, tok, got)

	_, err = repo.Get(context.Background(), tok.UserID, models.TokenPurposeEmailVerify)
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestTokenRepository_Consume(t *testing.T) {
	tok := sampleToken()
	now := tok.ExpiresAt.Add(-time.Minute)
	newHash := []byte("$argon2id$newpassword")

	t.Run("password reset commits", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM user_tokens`).
			WithArgs(tok.UserID, "password_reset", tok.Hash, now).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec(`UPDATE users SET password_hash`).
			WithArgs(tok.UserID, newHash).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := NewTokenRepository(mock).Consume(context.Background(), tok, now, models.TokenEffect{NewPasswordHash: newHash})
		require.NoError(t, err)
	})

	t.Run("email verify commits", func(t *testing.T) {
		verify := tok
		verify.Purpose = models.TokenPurposeEmailVerify

		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM user_tokens`).
			WithArgs(tok.UserID, "email_verify", tok.Hash, now).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec(`UPDATE users SET email_verified = TRUE`).
			WithArgs(tok.UserID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := NewTokenRepository(mock).Consume(context.Background(), verify, now, models.TokenEffect{VerifyEmail: true})
		require.NoError(t, err)
	})

	t.Run("lost race rolls back", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM user_tokens`).
			WithArgs(tok.UserID, "password_reset", tok.Hash, now).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectRollback()

		err := NewTokenRepository(mock).Consume(context.Background(), tok, now, models.TokenEffect{NewPasswordHash: newHash})
		require.ErrorIs(t, err, ErrTokenConsumed)
	})

	t.Run("owner vanished rolls back", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM user_tokens`).
			WithArgs(tok.UserID, "password_reset", tok.Hash, now).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec(`UPDATE users SET password_hash`).
			WithArgs(tok.UserID, newHash).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		err := NewTokenRepository(mock).Consume(context.Background(), tok, now, models.TokenEffect{NewPasswordHash: newHash})
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("begin fails", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin().WillReturnError(errors.New("pool closed"))

		err := NewTokenRepository(mock).Consume(context.Background(), tok, now, models.TokenEffect{})
		require.ErrorContains(t, err, "pool closed")
	})
}

func TestTokenRepository_DeleteExpired(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM user_tokens WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`DELETE FROM user_tokens WHERE user_id = \$1 AND purpose = \$2 AND expires_at <= \$3`).
		WithArgs("u1", "email_verify", now).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	repo := NewTokenRepository(mock)
	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, repo.DeleteExpiredFor(context.Background(), "u1", models.TokenPurposeEmailVerify, now))
}
