// AngelaMos | 2026
// handler_test.go

package session

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/gateway/internal/config"
	"github.com/harborview/gateway/internal/middleware"
	"github.com/harborview/gateway/internal/refresh"
	"github.com/harborview/gateway/internal/token"
)

type env struct {
	router      chi.Router
	codec       *token.Codec
	coordinator *refresh.Coordinator
	store       *refresh.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()

	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	key, err := jwk.Import(raw)
	require.NoError(t, err)

	codec, err := token.NewCodecFromKey(key, config.TokenConfig{
		AccessTokenExpire:  time.Hour,
		RefreshTokenExpire: 168 * time.Hour,
		Issuer:             "session-gateway",
		Audience:           "web-app",
	})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := refresh.NewMemoryStore(168 * time.Hour)
	coordinator := refresh.NewCoordinator(store, codec, client)

	router := chi.NewRouter()
	NewHandler(coordinator, codec).RegisterRoutes(router)

	return &env{
		router:      router,
		codec:       codec,
		coordinator: coordinator,
		store:       store,
	}
}

// asUser injects the identity the gate would normally attach.
func asUser(req *http.Request, username string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.IdentityKey, &middleware.Identity{
		Username:   username,
		Email:      username + "@example.com",
		Department: "Finance",
		Role:       "approver",
	})
	return req.WithContext(ctx)
}

func TestGetMe(t *testing.T) {
	e := newEnv(t)

	req := asUser(httptest.NewRequest(http.MethodGet, "/session/me", nil), "mlopez")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool       `json:"success"`
		Data    MeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.True(t, body.Success)
	assert.Equal(t, "mlopez", body.Data.Username)
	assert.Equal(t, "mlopez@example.com", body.Data.Email)
	assert.Equal(t, "approver", body.Data.Role)
}

func TestGetMeUnauthenticated(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/session/me", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetSessions(t *testing.T) {
	e := newEnv(t)

	_, err := e.coordinator.Issue(
		context.Background(),
		token.ClaimSet{Username: "mlopez"},
		"laptop", "10.0.0.1", "test-agent",
		168*time.Hour,
	)
	require.NoError(t, err)

	req := asUser(httptest.NewRequest(http.MethodGet, "/session/sessions", nil), "mlopez")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data SessionsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Sessions, 1)
	assert.Equal(t, "laptop", body.Data.Sessions[0].DeviceID)
}

func TestRevokeSession(t *testing.T) {
	e := newEnv(t)

	_, err := e.coordinator.Issue(
		context.Background(),
		token.ClaimSet{Username: "mlopez"},
		"laptop", "10.0.0.1", "test-agent",
		168*time.Hour,
	)
	require.NoError(t, err)

	req := asUser(httptest.NewRequest(
		http.MethodDelete, "/session/sessions/laptop", nil), "mlopez")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)

	sessions, err := e.coordinator.ActiveSessions(context.Background(), "mlopez")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestLogout(t *testing.T) {
	e := newEnv(t)

	pair, err := e.coordinator.Issue(
		context.Background(),
		token.ClaimSet{Username: "mlopez"},
		"laptop", "10.0.0.1", "test-agent",
		168*time.Hour,
	)
	require.NoError(t, err)

	req := asUser(httptest.NewRequest(http.MethodPost, "/session/logout", nil), "mlopez")
	req.AddCookie(&http.Cookie{
		Name:  middleware.RefreshCookieName,
		Value: pair.RefreshToken,
	})
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Session cookies expired on the response, chain revoked in the store.
	names := make(map[string]bool)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			names[c.Name] = true
		}
	}
	assert.True(t, names[middleware.AuthCookieName])
	assert.True(t, names[middleware.RefreshCookieName])

	sessions, err := e.coordinator.ActiveSessions(context.Background(), "mlopez")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestLogoutBlacklistsAccessToken(t *testing.T) {
	e := newEnv(t)

	pair, err := e.coordinator.Issue(
		context.Background(),
		token.ClaimSet{Username: "mlopez"},
		"laptop", "10.0.0.1", "test-agent",
		168*time.Hour,
	)
	require.NoError(t, err)

	claims, err := e.codec.Decode(pair.AccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, claims.TokenID)
	assert.False(t, e.coordinator.IsAccessTokenBlacklisted(
		context.Background(), claims.TokenID))

	req := asUser(httptest.NewRequest(http.MethodPost, "/session/logout", nil), "mlopez")
	req.AddCookie(&http.Cookie{
		Name:  middleware.AuthCookieName,
		Value: pair.AccessToken,
	})
	req.AddCookie(&http.Cookie{
		Name:  middleware.RefreshCookieName,
		Value: pair.RefreshToken,
	})
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)

	// The unexpired access token is dead for the rest of its lifetime.
	assert.True(t, e.coordinator.IsAccessTokenBlacklisted(
		context.Background(), claims.TokenID))
}

func TestLogoutWithoutCookieStillClears(t *testing.T) {
	e := newEnv(t)

	req := asUser(httptest.NewRequest(http.MethodPost, "/session/logout", nil), "mlopez")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Result().Cookies())
}
