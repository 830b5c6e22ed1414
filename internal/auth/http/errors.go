package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/siteadmin/internal/auth/service"
	"github.com/aussiebroadwan/siteadmin/pkg/adminsdk"
	"github.com/aussiebroadwan/siteadmin/pkg/slogx"
)

// writeServiceError translates a service sentinel into its API error.
// Anything unrecognised is logged and reported as a server error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *adminsdk.APIError
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		apiErr = adminsdk.ErrInvalidCredentials
	case errors.Is(err, service.ErrWeakCredential):
		apiErr = adminsdk.ErrWeakCredential.WithDescription(err.Error())
	case errors.Is(err, service.ErrMissingPassword):
		apiErr = adminsdk.ErrInvalidRequest.WithDescription("password is required")
	case errors.Is(err, service.ErrInvalidUsername):
		apiErr = adminsdk.ErrInvalidRequest.WithDescription("invalid username")
	case errors.Is(err, service.ErrInvalidEmail):
		apiErr = adminsdk.ErrInvalidRequest.WithDescription("invalid email address")
	case errors.Is(err, service.ErrDuplicateUsername):
		apiErr = adminsdk.ErrDuplicateUsername
	case errors.Is(err, service.ErrInvalidRole):
		apiErr = adminsdk.ErrInvalidRole
	case errors.Is(err, service.ErrNotFound):
		apiErr = adminsdk.ErrNotFound
	case errors.Is(err, service.ErrSelfRoleChange):
		apiErr = adminsdk.ErrSelfRoleChange
	case errors.Is(err, service.ErrSelfDeletion):
		apiErr = adminsdk.ErrSelfDeletion
	case errors.Is(err, service.ErrInsufficientPermission):
		apiErr = adminsdk.ErrInsufficientPermission
	case errors.Is(err, service.ErrInvalidToken):
		apiErr = adminsdk.ErrInvalidToken
	case errors.Is(err, service.ErrExpired):
		apiErr = adminsdk.ErrExpired
	case errors.Is(err, service.ErrReconciliationRequired):
		slogx.FromContext(r.Context()).Error("operation needs reconciliation", "error", err)
		apiErr = adminsdk.ErrReconciliation
	default:
		slogx.FromContext(r.Context()).Error("request failed", "error", err)
		apiErr = adminsdk.ErrServerError
	}
	apiErr.WriteError(w)
}

// formValue returns a required form field or writes invalid_request.
func formValue(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.PostFormValue(name)
	if v == "" {
		adminsdk.ErrInvalidRequest.WithDescription(name + " is required").WriteError(w)
		return "", false
	}
	return v, true
}
