package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"smartcampus/api/internal/models"
)

var (
	ErrTokenNotFound = errors.New("pending token not found")
	// ErrTokenConsumed means the token row was already gone (or had expired)
	// when the consuming transaction tried to delete it.
	ErrTokenConsumed = errors.New("pending token already consumed")
)

type TokenRepository struct {
	db DB
}

func NewTokenRepository(db DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Upsert stores tok as the only pending token for its (user, purpose) slot,
// replacing whatever was there.
func (r *TokenRepository) Upsert(ctx context.Context, tok models.PendingToken) error {
	const query = `
		INSERT INTO user_tokens (user_id, purpose, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, purpose)
		DO UPDATE SET
			token_hash = EXCLUDED.token_hash,
			expires_at = EXCLUDED.expires_at,
			created_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, tok.UserID, string(tok.Purpose), tok.Hash, tok.ExpiresAt)
	if err != nil && isForeignKeyViolation(err) {
		return ErrUserNotFound
	}
	return err
}

func (r *TokenRepository) Get(ctx context.Context, userID string, purpose models.TokenPurpose) (models.PendingToken, error) {
	const query = `
		SELECT user_id, purpose, token_hash, expires_at, created_at
		FROM user_tokens
		WHERE user_id = $1 AND purpose = $2
	`

	var (
		tok     models.PendingToken
		purpStr string
	)
	if err := r.db.QueryRow(ctx, query, userID, string(purpose)).Scan(
		&tok.UserID,
		&purpStr,
		&tok.Hash,
		&tok.ExpiresAt,
		&tok.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PendingToken{}, ErrTokenNotFound
		}
		return models.PendingToken{}, err
	}
	tok.Purpose = models.TokenPurpose(purpStr)
	return tok, nil
}

// Consume deletes tok and applies effect to its owner in one transaction. The
// delete only matches the exact hash that was verified and only while the row
// is unexpired at now, so of two concurrent consumers at most one commits.
func (r *TokenRepository) Consume(ctx context.Context, tok models.PendingToken, now time.Time, effect models.TokenEffect) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if err := consumeTx(ctx, tx, tok, now, effect); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func consumeTx(ctx context.Context, tx pgx.Tx, tok models.PendingToken, now time.Time, effect models.TokenEffect) error {
	const deleteToken = `
		DELETE FROM user_tokens
		WHERE user_id = $1 AND purpose = $2 AND token_hash = $3 AND expires_at > $4
	`
	cmd, err := tx.Exec(ctx, deleteToken, tok.UserID, string(tok.Purpose), tok.Hash, now)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTokenConsumed
	}

	if effect.VerifyEmail {
		const verify = `UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`
		cmd, err := tx.Exec(ctx, verify, tok.UserID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrUserNotFound
		}
	}

	if len(effect.NewPasswordHash) > 0 {
		const reset = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
		cmd, err := tx.Exec(ctx, reset, tok.UserID, effect.NewPasswordHash)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrUserNotFound
		}
	}

	return nil
}

// DeleteExpiredFor removes the (user, purpose) token if it has expired by now.
func (r *TokenRepository) DeleteExpiredFor(ctx context.Context, userID string, purpose models.TokenPurpose, now time.Time) error {
	const query = `DELETE FROM user_tokens WHERE user_id = $1 AND purpose = $2 AND expires_at <= $3`
	_, err := r.db.Exec(ctx, query, userID, string(purpose), now)
	return err
}

func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM user_tokens WHERE expires_at <= $1`
	cmd, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
