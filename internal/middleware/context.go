// AngelaMos | 2026
// context.go

package middleware

import (
	"context"
)

type contextKey string

const (
	IdentityKey  contextKey = "identity"
	RequestIDKey contextKey = "request_id"
)

// Identity is the request-scoped authenticated caller. It is created fresh
// per request by the gate and discarded with the request; nothing here is
// shared across requests.
type Identity struct {
	Username   string
	Email      string
	Department string
	JobTitle   string
	Role       string
}

func GetIdentity(ctx context.Context) *Identity {
	if id, ok := ctx.Value(IdentityKey).(*Identity); ok {
		return id
	}
	return nil
}

func GetUsername(ctx context.Context) string {
	if id := GetIdentity(ctx); id != nil {
		return id.Username
	}
	return ""
}

func GetRole(ctx context.Context) string {
	if id := GetIdentity(ctx); id != nil {
		return id.Role
	}
	return ""
}

func IsAuthenticated(ctx context.Context) bool {
	return GetUsername(ctx) != ""
}

func GetRequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(RequestIDKey).(string); ok {
		return rid
	}
	return ""
}
