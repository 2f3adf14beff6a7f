// AngelaMos | 2026
// memory.go

package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborview/gateway/internal/core"
)

// MemoryStore is a mutex-guarded Store with the same single-winner rotation
// semantics as the postgres implementation. It backs tests and local
// development; nothing survives a restart.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken // keyed by token hash
	ttl    time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]*RefreshToken),
		ttl:    ttl,
	}
}

func (s *MemoryStore) Create(ctx context.Context, token *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[token.TokenHash]; exists {
		return fmt.Errorf("create refresh token: %w", core.ErrDuplicateKey)
	}

	copied := *token
	s.tokens[token.TokenHash] = &copied
	return nil
}

func (s *MemoryStore) Validate(
	ctx context.Context,
	token, username string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[core.HashToken(token)]
	if !ok {
		return fmt.Errorf("validate refresh token: %w", core.ErrNotFound)
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

func (s *MemoryStore) FindByToken(
	ctx context.Context,
	token string,
) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[core.HashToken(token)]
	if !ok {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}

	copied := *record
	return &copied, nil
}

func (s *MemoryStore) Rotate(
	ctx context.Context,
	token, ip, userAgent string,
) (*RotationResult, error) {
	plaintext, err := core.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	newHash := core.HashToken(plaintext)

	s.mu.Lock()
	defer s.mu.Unlock()

	hash := core.HashToken(token)
	predecessor, ok := s.tokens[hash]
	if !ok {
		return nil, fmt.Errorf("rotate refresh token: %w", core.ErrNotFound)
	}

	if predecessor.IsRevoked() {
		s.revokeChainLocked(
			predecessor.Username,
			predecessor.DeviceID,
			RevokedByGateway,
			ReasonReuse,
		)
		return nil, fmt.Errorf("rotate refresh token: %w", core.ErrTokenReused)
	}

	if predecessor.IsExpired() {
		return nil, fmt.Errorf("rotate refresh token: %w", core.ErrTokenExpired)
	}

	predecessor.Revoke(RevokedByRotation, ReasonRotated)
	predecessor.ReplacedBy = &newHash

	now := time.Now()
	successor := RefreshToken{
		ID:        uuid.New().String(),
		Username:  predecessor.Username,
		TokenHash: newHash,
		DeviceID:  predecessor.DeviceID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
		IPAddress: ip,
		UserAgent: userAgent,
	}

	copied := successor
	s.tokens[newHash] = &copied

	return &RotationResult{Token: plaintext, Record: successor}, nil
}

func (s *MemoryStore) RevokeChain(
	ctx context.Context,
	username, deviceID, by, reason string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revokeChainLocked(username, deviceID, by, reason)
	return nil
}

func (s *MemoryStore) RevokeAllForUser(
	ctx context.Context,
	username, by, reason string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.tokens {
		if record.Username == username && !record.IsRevoked() {
			record.Revoke(by, reason)
		}
	}
	return nil
}

func (s *MemoryStore) ActiveSessionsForUser(
	ctx context.Context,
	username string,
) ([]RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sessions []RefreshToken
	for _, record := range s.tokens {
		if record.Username == username && record.IsActive() {
			sessions = append(sessions, *record)
		}
	}
	return sessions, nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-24 * time.Hour)

	var deleted int64
	for hash, record := range s.tokens {
		if record.ExpiresAt.Before(cutoff) {
			delete(s.tokens, hash)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) revokeChainLocked(username, deviceID, by, reason string) {
	for _, record := range s.tokens {
		if record.Username == username &&
			record.DeviceID == deviceID &&
			!record.IsRevoked() {
			record.Revoke(by, reason)
		}
	}
}
