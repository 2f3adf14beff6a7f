// AngelaMos | 2026
// codec.go

package token

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/harborview/gateway/internal/config"
)

var (
	// ErrDecodeFailure covers malformed tokens and bad signatures.
	ErrDecodeFailure = errors.New("token decode failure")
	// ErrMissingUsername is returned for a well-signed token without a
	// usable username claim. Treated exactly like a decode failure by
	// callers; the distinction exists for logging.
	ErrMissingUsername = errors.New("missing username claim")
)

// ClaimSet is the fully-typed view of a decoded access token. ExpiresAt is
// nil when the token carries no exp claim; TokenID is empty when it carries
// no jti.
type ClaimSet struct {
	TokenID    string
	Username   string
	Email      string
	Department string
	JobTitle   string
	Role       string
	ExpiresAt  *time.Time
}

// Expired reports whether the claim set has passed its expiry. A token
// without an exp claim never expires here; the issuing side always sets one,
// so this only matters for foreign tokens.
func (c *ClaimSet) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

type Codec struct {
	privateKey jwk.Key
	publicKey  jwk.Key
	publicJWKS jwk.Set
	config     config.TokenConfig
}

func NewCodec(cfg config.TokenConfig) (*Codec, error) {
	privateKeyPEM, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	privateKey, err := jwk.ParseKey(privateKeyPEM, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return newCodec(privateKey, cfg)
}

// NewCodecFromKey builds a codec around an already-parsed private key.
// Used by tests and by deployments that load keys from a secret manager.
func NewCodecFromKey(
	privateKey jwk.Key,
	cfg config.TokenConfig,
) (*Codec, error) {
	return newCodec(privateKey, cfg)
}

func newCodec(privateKey jwk.Key, cfg config.TokenConfig) (*Codec, error) {
	if setErr := privateKey.Set(jwk.AlgorithmKey, jwa.ES256()); setErr != nil {
		return nil, fmt.Errorf("set algorithm: %w", setErr)
	}

	keyID := uuid.New().String()[:8]
	if setErr := privateKey.Set(jwk.KeyIDKey, keyID); setErr != nil {
		return nil, fmt.Errorf("set key id: %w", setErr)
	}

	publicKey, err := privateKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	if setErr := publicKey.Set(jwk.KeyUsageKey, "sig"); setErr != nil {
		return nil, fmt.Errorf("set key usage: %w", setErr)
	}

	publicJWKS := jwk.NewSet()
	if addErr := publicJWKS.AddKey(publicKey); addErr != nil {
		return nil, fmt.Errorf("add key to set: %w", addErr)
	}

	return &Codec{
		privateKey: privateKey,
		publicKey:  publicKey,
		publicJWKS: publicJWKS,
		config:     cfg,
	}, nil
}

func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	jwkPrivate, err := jwk.Import(privateKey)
	if err != nil {
		return fmt.Errorf("import private key: %w", err)
	}

	keyID := uuid.New().String()[:8]
	if setErr := jwkPrivate.Set(jwk.KeyIDKey, keyID); setErr != nil {
		return fmt.Errorf("set key id: %w", setErr)
	}
	if setErr := jwkPrivate.Set(jwk.AlgorithmKey, jwa.ES256()); setErr != nil {
		return fmt.Errorf("set algorithm: %w", setErr)
	}

	privatePEM, err := jwk.Pem(jwkPrivate)
	if err != nil {
		return fmt.Errorf("encode private key: %w", err)
	}

	if writeErr := os.WriteFile(privateKeyPath, privatePEM, 0o600); writeErr != nil {
		return fmt.Errorf("write private key: %w", writeErr)
	}

	jwkPublic, err := jwkPrivate.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	publicPEM, err := jwk.Pem(jwkPublic)
	if err != nil {
		return fmt.Errorf("encode public key: %w", err)
	}

	//nolint:gosec // G306: public key is intentionally world-readable
	if writeErr := os.WriteFile(publicKeyPath, publicPEM, 0o644); writeErr != nil {
		return fmt.Errorf("write public key: %w", writeErr)
	}

	return nil
}

// Decode verifies the signature and extracts a typed claim set. It never
// performs time validation: expiry is a gate decision, not a parse failure.
// No partial claim set is ever returned alongside an error.
func (c *Codec) Decode(raw string) (*ClaimSet, error) {
	tok, err := jwt.Parse(
		[]byte(raw),
		jwt.WithKey(jwa.ES256(), c.publicKey),
		jwt.WithValidate(false),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", ErrDecodeFailure)
	}

	var username string
	if err := tok.Get("username", &username); err != nil || username == "" {
		return nil, fmt.Errorf("decode token: %w", ErrMissingUsername)
	}

	claims := &ClaimSet{Username: username}

	//nolint:errcheck // profile claims are optional
	_ = tok.Get("email", &claims.Email)
	//nolint:errcheck // profile claims are optional
	_ = tok.Get("department", &claims.Department)
	//nolint:errcheck // profile claims are optional
	_ = tok.Get("job_title", &claims.JobTitle)
	//nolint:errcheck // profile claims are optional
	_ = tok.Get("role", &claims.Role)

	if jti, ok := tok.JwtID(); ok {
		claims.TokenID = jti
	}

	if exp, ok := tok.Expiration(); ok {
		claims.ExpiresAt = &exp
	}

	return claims, nil
}

// Issue signs a fresh access token for the claim set. The exp claim is
// always set from config regardless of claims.ExpiresAt.
func (c *Codec) Issue(claims ClaimSet) (string, error) {
	now := time.Now()

	builder := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(c.config.Issuer).
		Audience([]string{c.config.Audience}).
		Subject(claims.Username).
		IssuedAt(now).
		Expiration(now.Add(c.config.AccessTokenExpire)).
		NotBefore(now).
		Claim("username", claims.Username)

	if claims.Email != "" {
		builder = builder.Claim("email", claims.Email)
	}
	if claims.Department != "" {
		builder = builder.Claim("department", claims.Department)
	}
	if claims.JobTitle != "" {
		builder = builder.Claim("job_title", claims.JobTitle)
	}
	if claims.Role != "" {
		builder = builder.Claim("role", claims.Role)
	}

	tok, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.ES256(), c.privateKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return string(signed), nil
}

func (c *Codec) GetJWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")

		if err := json.NewEncoder(w).Encode(c.publicJWKS); err != nil {
			http.Error(
				w,
				"Internal Server Error",
				http.StatusInternalServerError,
			)
			return
		}
	}
}

func (c *Codec) GetPublicKey() jwk.Key {
	return c.publicKey
}

func (c *Codec) GetKeyID() string {
	var kid string
	//nolint:errcheck // key ID always set during codec init
	_ = c.privateKey.Get(jwk.KeyIDKey, &kid)
	return kid
}
