// AngelaMos | 2026
// store.go

package refresh

import (
	"context"
)

// RotationResult carries the successor credential out of a rotation.
// Token is the plaintext handed to the browser; it is not recoverable
// afterwards.
type RotationResult struct {
	Token  string
	Record RefreshToken
}

// Store persists refresh-token chains. Rotate is the linearization point
// for concurrent refreshes: implementations must consume the predecessor
// with a single conditional update so that of N callers presenting the same
// token exactly one wins and the rest observe core.ErrTokenReused.
type Store interface {
	// Create persists a freshly issued token (login or rotation successor).
	Create(ctx context.Context, token *RefreshToken) error

	// Validate returns nil only if the token exists, is unrevoked,
	// unexpired, and bound to username. Failures map onto core sentinel
	// errors (ErrNotFound, ErrTokenExpired, ErrTokenRevoked, ErrForbidden).
	Validate(ctx context.Context, token, username string) error

	// Rotate atomically revokes the presented token, records its successor
	// hash, and persists a successor on the same chain. Presenting an
	// already-revoked token fails with core.ErrTokenReused after revoking
	// whatever remains of the chain.
	Rotate(ctx context.Context, token, ip, userAgent string) (*RotationResult, error)

	// FindByToken looks up the record for the presented credential.
	FindByToken(ctx context.Context, token string) (*RefreshToken, error)

	// RevokeChain terminally revokes every unrevoked token on one
	// (username, device) chain.
	RevokeChain(ctx context.Context, username, deviceID, by, reason string) error

	// RevokeAllForUser revokes every chain the user owns.
	RevokeAllForUser(ctx context.Context, username, by, reason string) error

	// ActiveSessionsForUser lists the unconsumed head of each chain.
	ActiveSessionsForUser(ctx context.Context, username string) ([]RefreshToken, error)

	// DeleteExpired removes tokens past their lifetime plus a grace day.
	DeleteExpired(ctx context.Context) (int64, error)
}
