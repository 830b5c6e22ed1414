package adminsdk

import (
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/siteadmin/pkg/httpx"
)

const (
	ErrorCodeInvalidRequest         = "invalid_request"
	ErrorCodeInvalidCredentials     = "invalid_credentials"
	ErrorCodeWeakCredential         = "weak_credential"
	ErrorCodeDuplicateUsername      = "duplicate_username"
	ErrorCodeInvalidRole            = "invalid_role"
	ErrorCodeNotFound               = "not_found"
	ErrorCodeSelfRoleChange         = "self_role_change"
	ErrorCodeSelfDeletion           = "self_deletion"
	ErrorCodeInsufficientPermission = "insufficient_permission"
	ErrorCodeInvalidToken           = "invalid_token"
	ErrorCodeExpired                = "expired"
	ErrorCodeReconciliation         = "reconciliation_required"
	ErrorCodeServerError            = "server_error"
)

// APIError is an error response from the admin API. Two APIErrors match
// under errors.Is when their codes match.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WriteError writes e as the JSON error body.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, ErrorResponse{Error: e.Code, ErrorDescription: e.Description})
}

// WithDescription returns a copy of e with a different description.
func (e *APIError) WithDescription(desc string) *APIError {
	c := *e
	c.Description = desc
	return &c
}

var (
	ErrInvalidRequest = &APIError{http.StatusBadRequest, ErrorCodeInvalidRequest, "the request is malformed or missing required parameters"}

	// ErrInvalidCredentials covers unknown users, wrong passwords, wrong TOTP
	// codes and inactive identities alike.
	ErrInvalidCredentials = &APIError{http.StatusUnauthorized, ErrorCodeInvalidCredentials, "invalid credentials"}

	ErrWeakCredential         = &APIError{http.StatusBadRequest, ErrorCodeWeakCredential, "password does not meet the policy"}
	ErrDuplicateUsername      = &APIError{http.StatusConflict, ErrorCodeDuplicateUsername, "username is already taken"}
	ErrInvalidRole            = &APIError{http.StatusBadRequest, ErrorCodeInvalidRole, "role is not configured"}
	ErrNotFound               = &APIError{http.StatusNotFound, ErrorCodeNotFound, "identity not found"}
	ErrSelfRoleChange         = &APIError{http.StatusForbidden, ErrorCodeSelfRoleChange, "cannot change your own role"}
	ErrSelfDeletion           = &APIError{http.StatusForbidden, ErrorCodeSelfDeletion, "cannot deactivate or delete yourself"}
	ErrInsufficientPermission = &APIError{http.StatusForbidden, ErrorCodeInsufficientPermission, "insufficient permission"}
	ErrInvalidToken           = &APIError{http.StatusBadRequest, ErrorCodeInvalidToken, "invitation token is invalid or already used"}
	ErrExpired                = &APIError{http.StatusGone, ErrorCodeExpired, "invitation has expired"}

	// ErrReconciliation means the server may hold partial state and an
	// operator must inspect it. Do not retry.
	ErrReconciliation = &APIError{http.StatusInternalServerError, ErrorCodeReconciliation, "redemption needs manual reconciliation"}

	ErrServerError = &APIError{http.StatusInternalServerError, ErrorCodeServerError, "internal server error"}
)
