package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/siteadmin/pkg/jwtx"
	"github.com/aussiebroadwan/siteadmin/pkg/slogx"
)

// SessionCheck runs after the token verifies. A non-nil error rejects the
// request, e.g. because the identity has since been deactivated.
type SessionCheck func(ctx context.Context, claims jwtx.Claims) error

// AuthnMiddleware verifies the bearer token and injects its claims into the
// request context. check may be nil.
func AuthnMiddleware(v jwtx.Verifier, check SessionCheck) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.Verify(raw)
			if err != nil {
				writeBearerError(w, "token verification failed")
				log.Warn("jwt verify failed", "err", err)
				return
			}

			if check != nil {
				if err := check(ctx, claims); err != nil {
					writeBearerError(w, "session no longer valid")
					log.Warn("session rejected", "sub", claims.Subject, "err", err)
					return
				}
			}

			ctx = contextWithAuth(ctx, claims)
			ctx = slogx.WithActor(ctx, claims.Subject, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
