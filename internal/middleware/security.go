package middleware

import (
	"net/http"
	"strings"
)

// SecurityHeaders sets the CSP and related headers. Stored uploads are served
// from this origin, so nosniff keeps browsers from reinterpreting them.
// Must run after NonceMiddleware.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scriptSrc := "'self'"
		if nonce := GetNonce(r.Context()); nonce != "" {
			scriptSrc += " 'nonce-" + nonce + "'"
		}

		csp := []string{
			"default-src 'self'",
			"script-src " + scriptSrc,
			"img-src 'self' data:",
			"object-src 'none'",
			"base-uri 'self'",
			"frame-ancestors 'none'",
		}

		h := w.Header()
		h.Set("Content-Security-Policy", strings.Join(csp, "; "))
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
