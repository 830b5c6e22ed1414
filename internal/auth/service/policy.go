package service

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// PasswordPolicy is a named minimum-length rule. Length counts characters,
// not bytes.
type PasswordPolicy struct {
	Name      string
	MinLength int
}

var (
	// BootstrapPasswordPolicy applies to the one-time owner account.
	BootstrapPasswordPolicy = PasswordPolicy{Name: "bootstrap", MinLength: 12}

	// InvitedPasswordPolicy applies to identities created after bootstrap.
	// Strength is not checked.
	InvitedPasswordPolicy = PasswordPolicy{Name: "invited"}
)

// Check returns ErrWeakCredential when password is shorter than MinLength.
// An empty password that passes the length rule is ErrMissingPassword.
func (p PasswordPolicy) Check(password string) error {
	if n := utf8.RuneCountInString(password); n < p.MinLength {
		return fmt.Errorf("%w: %s policy requires at least %d characters, got %d", ErrWeakCredential, p.Name, p.MinLength, n)
	}
	if password == "" {
		return ErrMissingPassword
	}
	return nil
}

// maxUsernameLength bounds usernames so they stay printable in audit output.
const maxUsernameLength = 64

func validateUsername(username string) error {
	if username == "" || strings.TrimSpace(username) != username {
		return ErrInvalidUsername
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return ErrInvalidUsername
	}
	for _, r := range username {
		if r < 0x20 || r == 0x7f {
			return ErrInvalidUsername
		}
	}
	return nil
}
