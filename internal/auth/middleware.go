package auth

import (
	"net/http"
	"strings"

	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
	"github.com/stockroom-erp/stockroom/internal/shared"
)

// RequireAuth resolves the Authorization bearer token into a principal and
// rejects the request when it cannot.
func RequireAuth(tokens *TokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := tokens.Resolve(r.Context(), bearerToken(r))
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid bearer token")
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole allows only principals carrying the given role. Mount after
// RequireAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := shared.PrincipalFromContext(r.Context())
			if p == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid bearer token")
				return
			}
			if p.Role != role {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
