// AngelaMos | 2026
// gate.go

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harborview/gateway/internal/config"
	"github.com/harborview/gateway/internal/refresh"
	"github.com/harborview/gateway/internal/token"
)

const (
	ReturnURLParam     = "ReturnUrl"
	ReturnURLRoleParam = "approverRole"

	ajaxHeader         = "X-Requested-With"
	ajaxHeaderValue    = "XMLHttpRequest"
	AuthRequiredHeader = "X-Auth-Required"

	unauthenticatedBody = "Authentication required"
)

// Public paths used when no whitelist is configured.
var defaultWhitelist = []string{
	"/Login",
	"/healthz",
	"/livez",
	"/readyz",
	"/.well-known/",
	"/static/",
	"/favicon.ico",
}

type TokenDecoder interface {
	Decode(raw string) (*token.ClaimSet, error)
}

type SessionRefresher interface {
	AttemptRefresh(
		ctx context.Context,
		claims *token.ClaimSet,
		refreshCookie, ip, userAgent string,
	) (*refresh.TokenPair, error)
	IsAccessTokenBlacklisted(ctx context.Context, tokenID string) bool
}

// Gate is the per-request authentication middleware. Every inbound request
// runs through it exactly once; it holds no mutable state of its own, and
// the only call that may block is the refresher's trip to the store.
type Gate struct {
	decoder   TokenDecoder
	refresher SessionRefresher
	cfg       config.GatewayConfig
	whitelist []string
}

func NewGate(
	decoder TokenDecoder,
	refresher SessionRefresher,
	cfg config.GatewayConfig,
) *Gate {
	whitelist := cfg.Whitelist
	if len(whitelist) == 0 {
		whitelist = defaultWhitelist
	}

	return &Gate{
		decoder:   decoder,
		refresher: refresher,
		cfg:       cfg,
		whitelist: whitelist,
	}
}

//nolint:funlen // the decision ladder reads better in one place
func (g *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A ReturnUrl query parameter forces the full authentication path
		// even on whitelisted routes: external deep links must establish
		// context before redirecting.
		returnURL := r.URL.Query().Get(ReturnURLParam)
		if returnURL != "" {
			g.setReturnURLCookie(w, r, returnURL)
		} else if g.whitelisted(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw := cookieValue(r, AuthCookieName)
		if raw == "" {
			g.deny(w, r, next, returnURL)
			return
		}

		claims, err := g.decoder.Decode(raw)
		if err != nil {
			// Stale or forged cookie. Not deleted here; a later successful
			// login overwrites it.
			slog.Warn("access token rejected",
				"path", r.URL.Path,
				"client_ip", ClientIP(r),
				"error", err,
			)
			g.deny(w, r, next, returnURL)
			return
		}

		if g.refresher.IsAccessTokenBlacklisted(r.Context(), claims.TokenID) {
			// Logged out; the token is dead even though its signature and
			// expiry still check out.
			slog.Warn("access token blacklisted",
				"username", claims.Username,
				"path", r.URL.Path,
				"client_ip", ClientIP(r),
			)
			g.clearSessionCookies(w, r)
			g.deny(w, r, next, returnURL)
			return
		}

		if claims.Expired(time.Now()) {
			pair, refreshErr := g.refresher.AttemptRefresh(
				r.Context(),
				claims,
				cookieValue(r, RefreshCookieName),
				ClientIP(r),
				r.UserAgent(),
			)
			if refreshErr != nil {
				slog.Warn("session refresh failed",
					"username", claims.Username,
					"path", r.URL.Path,
					"client_ip", ClientIP(r),
					"error", refreshErr,
				)
				g.clearSessionCookies(w, r)
				g.deny(w, r, next, returnURL)
				return
			}

			g.setSessionCookies(w, r, pair)
			// The request continues on the claims decoded from the expired
			// token; the fresh access token is only installed as a cookie.
			// Claims cannot change between issuances today, so the second
			// decode is skipped.
		}

		ctx := context.WithValue(r.Context(), IdentityKey, &Identity{
			Username:   claims.Username,
			Email:      claims.Email,
			Department: claims.Department,
			JobTitle:   claims.JobTitle,
			Role:       claims.Role,
		})

		if returnURL != "" {
			g.deleteReturnURLCookie(w, r)
			http.Redirect(
				w,
				r.WithContext(ctx),
				appendRoleParam(returnURL, claims.Role),
				http.StatusFound,
			)
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// deny is the single unauthenticated terminal. AJAX callers get a 401 and
// never a redirect; a captured return URL lets the request continue so the
// login page can render with it; everything else bounces to the login path.
func (g *Gate) deny(
	w http.ResponseWriter,
	r *http.Request,
	next http.Handler,
	returnURL string,
) {
	if isAJAX(r) {
		w.Header().Set(AuthRequiredHeader, "true")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		//nolint:errcheck // best-effort response write
		_, _ = w.Write([]byte(unauthenticatedBody))
		return
	}

	if returnURL != "" {
		next.ServeHTTP(w, r)
		return
	}

	http.Redirect(w, r, g.cfg.LoginPath, http.StatusFound)
}

func (g *Gate) whitelisted(path string) bool {
	lowered := strings.ToLower(path)
	for _, prefix := range g.whitelist {
		if strings.HasPrefix(lowered, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

func appendRoleParam(returnURL, role string) string {
	u, err := url.Parse(returnURL)
	if err != nil {
		return returnURL
	}

	query := u.Query()
	query.Set(ReturnURLRoleParam, role)
	u.RawQuery = query.Encode()
	return u.String()
}

func isAJAX(r *http.Request) bool {
	return r.Header.Get(ajaxHeader) == ajaxHeaderValue
}
