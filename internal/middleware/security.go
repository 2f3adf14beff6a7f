// AngelaMos | 2026
// security.go

package middleware

import (
	"net/http"
)

var securityHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"X-XSS-Protection":       "1; mode=block",
	"Referrer-Policy":        "strict-origin-when-cross-origin",
}

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders stamps defensive headers on every response. Each header
// is only set when absent, so applying the middleware twice never produces
// duplicates and downstream overrides win.
func SecurityHeaders(includeHSTS bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := w.Header()

			for name, value := range securityHeaders {
				if header.Get(name) == "" {
					header.Set(name, value)
				}
			}

			if includeHSTS && header.Get("Strict-Transport-Security") == "" {
				header.Set("Strict-Transport-Security", hstsValue)
			}

			next.ServeHTTP(w, r)
		})
	}
}
