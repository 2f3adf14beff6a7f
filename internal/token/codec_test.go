// AngelaMos | 2026
// codec_test.go

package token

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/gateway/internal/config"
)

func testConfig() config.TokenConfig {
	return config.TokenConfig{
		AccessTokenExpire:  time.Hour,
		RefreshTokenExpire: 168 * time.Hour,
		Issuer:             "session-gateway",
		Audience:           "web-app",
	}
}

func newTestKey(t *testing.T) jwk.Key {
	t.Helper()

	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	key, err := jwk.Import(raw)
	require.NoError(t, err)

	return key
}

func newTestCodec(t *testing.T) (*Codec, jwk.Key) {
	t.Helper()

	key := newTestKey(t)
	codec, err := NewCodecFromKey(key, testConfig())
	require.NoError(t, err)

	return codec, key
}

func signToken(t *testing.T, key jwk.Key, builder *jwt.Builder) string {
	t.Helper()

	tok, err := builder.Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.ES256(), key))
	require.NoError(t, err)

	return string(signed)
}

func TestIssueAndDecode(t *testing.T) {
	codec, _ := newTestCodec(t)

	claims := ClaimSet{
		Username:   "mlopez",
		Email:      "mlopez@example.com",
		Department: "Finance",
		JobTitle:   "Analyst",
		Role:       "approver",
	}

	raw, err := codec.Issue(claims)
	require.NoError(t, err)

	decoded, err := codec.Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, "mlopez", decoded.Username)
	assert.Equal(t, "mlopez@example.com", decoded.Email)
	assert.Equal(t, "Finance", decoded.Department)
	assert.Equal(t, "Analyst", decoded.JobTitle)
	assert.Equal(t, "approver", decoded.Role)
	assert.NotEmpty(t, decoded.TokenID)

	require.NotNil(t, decoded.ExpiresAt)
	assert.False(t, decoded.Expired(time.Now()))
	assert.WithinDuration(t, time.Now().Add(time.Hour), *decoded.ExpiresAt, time.Minute)
}

func TestDecodeGarbage(t *testing.T) {
	codec, _ := newTestCodec(t)

	for _, raw := range []string{"", "garbage", "a.b.c"} {
		claims, err := codec.Decode(raw)
		assert.Nil(t, claims)
		assert.ErrorIs(t, err, ErrDecodeFailure)
	}
}

func TestDecodeWrongKey(t *testing.T) {
	codec, _ := newTestCodec(t)
	other, _ := newTestCodec(t)

	raw, err := other.Issue(ClaimSet{Username: "mlopez"})
	require.NoError(t, err)

	claims, err := codec.Decode(raw)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrDecodeFailure)
}

func TestDecodeMissingUsername(t *testing.T) {
	codec, key := newTestCodec(t)

	raw := signToken(t, key, jwt.NewBuilder().
		Subject("mlopez").
		Expiration(time.Now().Add(time.Hour)))

	claims, err := codec.Decode(raw)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrMissingUsername)
}

func TestDecodeEmptyUsername(t *testing.T) {
	codec, key := newTestCodec(t)

	raw := signToken(t, key, jwt.NewBuilder().
		Claim("username", "").
		Expiration(time.Now().Add(time.Hour)))

	claims, err := codec.Decode(raw)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrMissingUsername)
}

func TestDecodeWithoutExpiry(t *testing.T) {
	codec, key := newTestCodec(t)

	raw := signToken(t, key, jwt.NewBuilder().
		Claim("username", "mlopez"))

	claims, err := codec.Decode(raw)
	require.NoError(t, err)

	assert.Nil(t, claims.ExpiresAt)
	assert.False(t, claims.Expired(time.Now()))
}

func TestDecodeExpiredToken(t *testing.T) {
	codec, key := newTestCodec(t)

	raw := signToken(t, key, jwt.NewBuilder().
		Claim("username", "mlopez").
		Expiration(time.Now().Add(-10*time.Second)))

	claims, err := codec.Decode(raw)
	require.NoError(t, err, "expiry is a gate decision, not a decode failure")

	assert.True(t, claims.Expired(time.Now()))
}
