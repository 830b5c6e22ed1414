package httpx

import (
	"context"
	"net/http"
)

// PermissionChecker decides whether the identity may use permission. A
// non-nil error is a denial.
type PermissionChecker interface {
	Authorize(ctx context.Context, identityID, permission string) error
}

// RequirePermission rejects callers lacking permission with 403. It must run
// after AuthnMiddleware.
func RequirePermission(pc PermissionChecker, permission string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := SubjectFromContext(r.Context())
			if sub == "" {
				writeBearerError(w, "missing bearer token")
				return
			}
			if err := pc.Authorize(r.Context(), sub, permission); err != nil {
				writeInsufficientPermission(w, permission)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeInsufficientPermission(w http.ResponseWriter, permission string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+permission+`"`)
	WriteJSON(w, http.StatusForbidden, map[string]string{
		"error":             "insufficient_permission",
		"error_description": "missing permission " + permission,
	})
}
