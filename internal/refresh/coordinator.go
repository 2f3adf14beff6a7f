// AngelaMos | 2026
// coordinator.go

package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/harborview/gateway/internal/core"
	"github.com/harborview/gateway/internal/token"
)

var (
	ErrMissingRefreshToken = errors.New("missing refresh token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRotationFailed      = errors.New("rotation failed")
)

// TokenPair is the freshly minted cookie pair returned by a successful
// refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

const (
	reuseIncidentPrefix = "reuse:incident:"
	reuseIncidentTTL    = 7 * 24 * time.Hour

	blacklistPrefix     = "blacklist:"
	defaultBlacklistTTL = 24 * time.Hour
)

// Coordinator orchestrates single refresh attempts against the Store. It
// holds no cross-request state; all mutation happens inside the store.
type Coordinator struct {
	store Store
	codec *token.Codec
	redis *redis.Client
}

func NewCoordinator(
	store Store,
	codec *token.Codec,
	redisClient *redis.Client,
) *Coordinator {
	return &Coordinator{
		store: store,
		codec: codec,
		redis: redisClient,
	}
}

// AttemptRefresh exchanges a still-valid refresh token for a new cookie
// pair. The new access token is minted from the claims the caller decoded
// before expiry; ownership is checked against those claims' username.
// Caller cancellation propagates into every store call.
func (c *Coordinator) AttemptRefresh(
	ctx context.Context,
	claims *token.ClaimSet,
	refreshCookie, ip, userAgent string,
) (*TokenPair, error) {
	if refreshCookie == "" {
		return nil, ErrMissingRefreshToken
	}

	if err := c.store.Validate(ctx, refreshCookie, claims.Username); err != nil {
		switch {
		case errors.Is(err, core.ErrTokenRevoked),
			errors.Is(err, core.ErrTokenExpired):
			// Fall through to Rotate, the single classifier for token state.
			// A revoked predecessor means replay, and only Rotate kills the
			// chain on it.
		case errors.Is(err, core.ErrNotFound),
			errors.Is(err, core.ErrForbidden):
			slog.Warn("refresh token rejected",
				"username", claims.Username,
				"client_ip", ip,
				"error", err,
			)
			return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
		default:
			return nil, fmt.Errorf("%w: %w", ErrRotationFailed, err)
		}
	}

	result, err := c.store.Rotate(ctx, refreshCookie, ip, userAgent)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrTokenReused):
			c.recordReuseIncident(ctx, claims.Username, ip, userAgent)
			slog.Warn("refresh token reuse detected, chain revoked",
				"username", claims.Username,
				"client_ip", ip,
			)
			return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
		case errors.Is(err, core.ErrTokenExpired),
			errors.Is(err, core.ErrNotFound):
			slog.Warn("refresh token rejected",
				"username", claims.Username,
				"client_ip", ip,
				"error", err,
			)
			return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
		default:
			return nil, fmt.Errorf("%w: %w", ErrRotationFailed, err)
		}
	}

	accessToken, err := c.codec.Issue(*claims)
	if err != nil {
		return nil, fmt.Errorf("%w: issue access token: %w", ErrRotationFailed, err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: result.Token,
	}, nil
}

// Issue creates a brand-new chain for a device and mints the first cookie
// pair. Called by the login service after credentials are verified.
func (c *Coordinator) Issue(
	ctx context.Context,
	claims token.ClaimSet,
	deviceID, ip, userAgent string,
	refreshTTL time.Duration,
) (*TokenPair, error) {
	accessToken, err := c.codec.Issue(claims)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	plaintext, err := core.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if deviceID == "" {
		deviceID = uuid.New().String()
	}

	now := time.Now()
	record := &RefreshToken{
		ID:        uuid.New().String(),
		Username:  claims.Username,
		TokenHash: core.HashToken(plaintext),
		DeviceID:  deviceID,
		IssuedAt:  now,
		ExpiresAt: now.Add(refreshTTL),
		IPAddress: ip,
		UserAgent: userAgent,
	}

	if err := c.store.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: plaintext,
	}, nil
}

// Logout revokes the chain behind the presented refresh token. A missing or
// unknown token is not an error; the caller's cookies get cleared either way.
func (c *Coordinator) Logout(
	ctx context.Context,
	refreshCookie, username string,
) error {
	if refreshCookie == "" {
		return nil
	}

	record, err := c.store.FindByToken(ctx, refreshCookie)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find token: %w", err)
	}

	if record.Username != username {
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	}

	if err := c.store.RevokeChain(
		ctx,
		record.Username,
		record.DeviceID,
		RevokedByUser,
		ReasonLogout,
	); err != nil {
		return fmt.Errorf("revoke chain: %w", err)
	}

	return nil
}

// BlacklistAccessToken bars an access token from authenticating for the
// remainder of its lifetime. Revoking the refresh chain alone would leave
// the access token usable until exp; logout needs both.
func (c *Coordinator) BlacklistAccessToken(
	ctx context.Context,
	claims *token.ClaimSet,
) error {
	if c.redis == nil || claims.TokenID == "" {
		return nil
	}

	ttl := defaultBlacklistTTL
	if claims.ExpiresAt != nil {
		ttl = time.Until(*claims.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}

	key := blacklistPrefix + claims.TokenID
	if err := c.redis.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist access token: %w", err)
	}

	return nil
}

// IsAccessTokenBlacklisted fails open on redis errors: an unreachable redis
// must not lock every session out.
func (c *Coordinator) IsAccessTokenBlacklisted(
	ctx context.Context,
	tokenID string,
) bool {
	if c.redis == nil || tokenID == "" {
		return false
	}

	n, err := c.redis.Exists(ctx, blacklistPrefix+tokenID).Result()
	if err != nil {
		slog.Warn("blacklist lookup failed", "error", err)
		return false
	}

	return n > 0
}

type SessionInfo struct {
	DeviceID  string    `json:"device_id"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *Coordinator) ActiveSessions(
	ctx context.Context,
	username string,
) ([]SessionInfo, error) {
	tokens, err := c.store.ActiveSessionsForUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, SessionInfo{
			DeviceID:  t.DeviceID,
			UserAgent: t.UserAgent,
			IPAddress: t.IPAddress,
			IssuedAt:  t.IssuedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}

	return sessions, nil
}

func (c *Coordinator) RevokeDevice(
	ctx context.Context,
	username, deviceID string,
) error {
	if err := c.store.RevokeChain(
		ctx,
		username,
		deviceID,
		RevokedByUser,
		ReasonLogout,
	); err != nil {
		return fmt.Errorf("revoke device: %w", err)
	}
	return nil
}

func (c *Coordinator) RevokeUser(
	ctx context.Context,
	username, reason string,
) error {
	if err := c.store.RevokeAllForUser(
		ctx,
		username,
		RevokedByAdmin,
		reason,
	); err != nil {
		return fmt.Errorf("revoke user: %w", err)
	}
	return nil
}

func (c *Coordinator) PurgeExpired(ctx context.Context) (int64, error) {
	return c.store.DeleteExpired(ctx)
}

// ReuseIncident is the audit trail entry written to redis when a rotation
// chain gets killed for replay.
type ReuseIncident struct {
	Username   string    `json:"username"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	DetectedAt time.Time `json:"detected_at"`
}

func (c *Coordinator) recordReuseIncident(
	ctx context.Context,
	username, ip, userAgent string,
) {
	if c.redis == nil {
		return
	}

	incident := ReuseIncident{
		Username:   username,
		IPAddress:  ip,
		UserAgent:  userAgent,
		DetectedAt: time.Now(),
	}

	payload, err := json.Marshal(incident)
	if err != nil {
		return
	}

	key := reuseIncidentPrefix + username + ":" + uuid.New().String()[:8]
	//nolint:errcheck // audit trail is best-effort
	_ = c.redis.Set(ctx, key, payload, reuseIncidentTTL).Err()
}

func (c *Coordinator) ReuseIncidents(
	ctx context.Context,
) ([]ReuseIncident, error) {
	if c.redis == nil {
		return nil, nil
	}

	var incidents []ReuseIncident

	iter := c.redis.Scan(ctx, 0, reuseIncidentPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := c.redis.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}

		var incident ReuseIncident
		if err := json.Unmarshal(raw, &incident); err != nil {
			continue
		}
		incidents = append(incidents, incident)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan reuse incidents: %w", err)
	}

	return incidents, nil
}
