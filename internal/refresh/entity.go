// AngelaMos | 2026
// entity.go

package refresh

import (
	"time"
)

// Revocation attributions recorded on revoked_by / revoke_reason.
const (
	RevokedByRotation = "rotation"
	RevokedByGateway  = "gateway"
	RevokedByUser     = "user"
	RevokedByAdmin    = "admin"

	ReasonRotated = "rotated"
	ReasonReuse   = "reuse detected"
	ReasonLogout  = "logout"
)

// RefreshToken is one link in a device's rotation chain. The opaque
// credential itself is never stored; TokenHash is the lookup key.
// ReplacedBy holds the successor's hash, set exactly once by rotation.
type RefreshToken struct {
	ID           string     `db:"id"`
	Username     string     `db:"username"`
	TokenHash    string     `db:"token_hash"`
	DeviceID     string     `db:"device_id"`
	IssuedAt     time.Time  `db:"issued_at"`
	ExpiresAt    time.Time  `db:"expires_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	RevokedBy    *string    `db:"revoked_by"`
	RevokeReason *string    `db:"revoke_reason"`
	ReplacedBy   *string    `db:"replaced_by_token"`
	IPAddress    string     `db:"ip_address"`
	UserAgent    string     `db:"user_agent"`
}

func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActive reports whether the token is still consumable. At most one token
// per (username, device) chain is ever active.
func (t *RefreshToken) IsActive() bool {
	return !t.IsExpired() && !t.IsRevoked()
}

func (t *RefreshToken) Revoke(by, reason string) {
	now := time.Now()
	t.RevokedAt = &now
	t.RevokedBy = &by
	t.RevokeReason = &reason
}
