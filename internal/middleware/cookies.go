// AngelaMos | 2026
// cookies.go

package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/harborview/gateway/internal/refresh"
)

const (
	AuthCookieName      = "AuthToken"
	RefreshCookieName   = "RefreshToken"
	ReturnURLCookieName = "WebReturnUrl"
)

func (g *Gate) setSessionCookies(
	w http.ResponseWriter,
	r *http.Request,
	pair *refresh.TokenPair,
) {
	secure := isHTTPS(r)

	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(g.cfg.AccessCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   int(g.cfg.RefreshCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (g *Gate) clearSessionCookies(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookies(w, r)
}

// ClearSessionCookies expires both session cookies on the response.
func ClearSessionCookies(w http.ResponseWriter, r *http.Request) {
	secure := isHTTPS(r)

	for _, name := range []string{AuthCookieName, RefreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func (g *Gate) setReturnURLCookie(
	w http.ResponseWriter,
	r *http.Request,
	returnURL string,
) {
	// Escaped so spaces and semicolons survive net/http's cookie
	// sanitizer; the login page unescapes on read.
	http.SetCookie(w, &http.Cookie{
		Name:     ReturnURLCookieName,
		Value:    url.QueryEscape(returnURL),
		Path:     "/",
		MaxAge:   int(g.cfg.ReturnURLTTL.Seconds()),
		HttpOnly: true,
		Secure:   isHTTPS(r),
	})
}

func (g *Gate) deleteReturnURLCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     ReturnURLCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isHTTPS(r),
	})
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// ClientIP attributes the request to an address for audit: rightmost
// X-Forwarded-For entry, then X-Real-IP, then the transport address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[len(ips)-1])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}
