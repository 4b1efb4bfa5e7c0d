package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth guards the tenant routes with the deployment's single bearer
// token (generated on first start, see config.EnsureAPIToken). The token
// authenticates the deployment, not a tenant; tenant identity comes from the
// URL path. Comparison is constant-time.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
