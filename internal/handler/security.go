package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/xenking/orderflow/internal/domain/auth"
)

type identityKey struct{}

// IdentityFromContext returns the authenticated caller, or nil for requests
// that did not pass through Authenticate.
func IdentityFromContext(ctx context.Context) *auth.Identity {
	id, _ := ctx.Value(identityKey{}).(*auth.Identity)
	return id
}

// Authenticate verifies the Bearer token on every request via the token
// introspector and stores the resolved identity in the context. Missing,
// malformed, or rejected tokens get 401; an unreachable introspector also
// rejects, never letting unverified requests through.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		identity, err := h.introspector.Verify(r.Context(), token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates privileged routes. It must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFromContext(r.Context())
		if identity == nil {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if !identity.IsAdmin() {
			respondError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
