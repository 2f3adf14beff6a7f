// AngelaMos | 2026
// postgres.go

package refresh

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/harborview/gateway/internal/core"
)

// errRotationLost marks a rotation whose conditional update matched no row.
// Classified after the transaction: reuse, expiry, or unknown token.
var errRotationLost = errors.New("rotation lost")

type PostgresStore struct {
	db  *sqlx.DB
	ttl time.Duration
}

func NewPostgresStore(db *sqlx.DB, ttl time.Duration) *PostgresStore {
	return &PostgresStore{db: db, ttl: ttl}
}

func (s *PostgresStore) Create(ctx context.Context, token *RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (
			id, username, token_hash, device_id, issued_at, expires_at,
			ip_address, user_agent
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)`

	_, err := s.db.ExecContext(ctx, query,
		token.ID,
		token.Username,
		token.TokenHash,
		token.DeviceID,
		token.IssuedAt,
		token.ExpiresAt,
		token.IPAddress,
		token.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}

	return nil
}

func (s *PostgresStore) Validate(
	ctx context.Context,
	token, username string,
) error {
	record, err := s.findByHash(ctx, core.HashToken(token))
	if err != nil {
		return err
	}

	if record.Username != username {
		return fmt.Errorf("validate refresh token: %w", core.ErrForbidden)
	}

	if record.IsRevoked() {
		return fmt.Errorf("validate refresh token: %w", core.ErrTokenRevoked)
	}

	if record.IsExpired() {
		return fmt.Errorf("validate refresh token: %w", core.ErrTokenExpired)
	}

	return nil
}

func (s *PostgresStore) FindByToken(
	ctx context.Context,
	token string,
) (*RefreshToken, error) {
	return s.findByHash(ctx, core.HashToken(token))
}

// Rotate consumes the predecessor and persists its successor in one
// transaction. The conditional update is the linearization point: of any
// number of concurrent callers presenting the same token, exactly one
// matches the unrevoked row.
func (s *PostgresStore) Rotate(
	ctx context.Context,
	token, ip, userAgent string,
) (*RotationResult, error) {
	hash := core.HashToken(token)

	plaintext, err := core.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	newHash := core.HashToken(plaintext)

	now := time.Now()
	successor := RefreshToken{
		ID:        uuid.New().String(),
		TokenHash: newHash,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
		IPAddress: ip,
		UserAgent: userAgent,
	}

	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		consume := `
			UPDATE refresh_tokens
			SET revoked_at = NOW(), revoked_by = $2, revoke_reason = $3,
			    replaced_by_token = $4
			WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
			RETURNING username, device_id`

		scanErr := tx.QueryRowxContext(
			ctx,
			consume,
			hash,
			RevokedByRotation,
			ReasonRotated,
			newHash,
		).Scan(&successor.Username, &successor.DeviceID)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return errRotationLost
		}
		if scanErr != nil {
			return fmt.Errorf("consume predecessor: %w", scanErr)
		}

		insert := `
			INSERT INTO refresh_tokens (
				id, username, token_hash, device_id, issued_at, expires_at,
				ip_address, user_agent
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8
			)`

		_, execErr := tx.ExecContext(ctx, insert,
			successor.ID,
			successor.Username,
			successor.TokenHash,
			successor.DeviceID,
			successor.IssuedAt,
			successor.ExpiresAt,
			successor.IPAddress,
			successor.UserAgent,
		)
		if execErr != nil {
			return fmt.Errorf("persist successor: %w", execErr)
		}

		return nil
	})
	if errors.Is(err, errRotationLost) {
		return nil, s.classifyLostRotation(ctx, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	return &RotationResult{Token: plaintext, Record: successor}, nil
}

func (s *PostgresStore) classifyLostRotation(
	ctx context.Context,
	hash string,
) error {
	record, err := s.findByHash(ctx, hash)
	if err != nil {
		return err
	}

	if record.IsRevoked() {
		// Replay of a consumed token. Contain possible theft by killing
		// whatever remains of the chain.
		//nolint:errcheck // containment continues regardless
		_ = s.RevokeChain(
			ctx,
			record.Username,
			record.DeviceID,
			RevokedByGateway,
			ReasonReuse,
		)
		return fmt.Errorf("rotate refresh token: %w", core.ErrTokenReused)
	}

	if record.IsExpired() {
		return fmt.Errorf("rotate refresh token: %w", core.ErrTokenExpired)
	}

	return fmt.Errorf("rotate refresh token: %w", core.ErrTokenInvalid)
}

func (s *PostgresStore) RevokeChain(
	ctx context.Context,
	username, deviceID, by, reason string,
) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), revoked_by = $3, revoke_reason = $4
		WHERE username = $1 AND device_id = $2 AND revoked_at IS NULL`

	_, err := s.db.ExecContext(ctx, query, username, deviceID, by, reason)
	if err != nil {
		return fmt.Errorf("revoke token chain: %w", err)
	}

	return nil
}

func (s *PostgresStore) RevokeAllForUser(
	ctx context.Context,
	username, by, reason string,
) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), revoked_by = $2, revoke_reason = $3
		WHERE username = $1 AND revoked_at IS NULL`

	_, err := s.db.ExecContext(ctx, query, username, by, reason)
	if err != nil {
		return fmt.Errorf("revoke all user tokens: %w", err)
	}

	return nil
}

func (s *PostgresStore) ActiveSessionsForUser(
	ctx context.Context,
	username string,
) ([]RefreshToken, error) {
	query := `
		SELECT
			id, username, token_hash, device_id, issued_at, expires_at,
			revoked_at, revoked_by, revoke_reason, replaced_by_token,
			ip_address, user_agent
		FROM refresh_tokens
		WHERE username = $1
			AND revoked_at IS NULL
			AND expires_at > NOW()
		ORDER BY issued_at DESC`

	var tokens []RefreshToken
	err := s.db.SelectContext(ctx, &tokens, query, username)
	if err != nil {
		return nil, fmt.Errorf("get active sessions: %w", err)
	}

	return tokens, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1`

	cutoff := time.Now().Add(-24 * time.Hour)

	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return rows, nil
}

func (s *PostgresStore) findByHash(
	ctx context.Context,
	hash string,
) (*RefreshToken, error) {
	query := `
		SELECT
			id, username, token_hash, device_id, issued_at, expires_at,
			revoked_at, revoked_by, revoke_reason, replaced_by_token,
			ip_address, user_agent
		FROM refresh_tokens
		WHERE token_hash = $1`

	var record RefreshToken
	err := s.db.GetContext(ctx, &record, query, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &record, nil
}
