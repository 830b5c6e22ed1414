package service

import "errors"

var (
	ErrAlreadyBootstrapped    = errors.New("already bootstrapped")
	ErrWeakCredential         = errors.New("weak credential")
	ErrMissingPassword        = errors.New("password is required")
	ErrInvalidUsername        = errors.New("invalid username")
	ErrInvalidEmail           = errors.New("invalid email")
	ErrDuplicateUsername      = errors.New("username already taken")
	ErrInvalidRole            = errors.New("invalid role")
	ErrNotFound               = errors.New("identity not found")
	ErrSelfRoleChange         = errors.New("cannot change own role")
	ErrSelfDeletion           = errors.New("cannot deactivate or delete self")
	ErrInsufficientPermission = errors.New("insufficient permission")
	ErrInvalidToken           = errors.New("invalid or used invitation token")
	ErrExpired                = errors.New("invitation expired")
	ErrInvalidCredentials     = errors.New("invalid credentials")

	// ErrReconciliationRequired means a redemption may have partially
	// applied. The request must not be retried automatically.
	ErrReconciliationRequired = errors.New("redemption outcome unknown, manual reconciliation required")
)
