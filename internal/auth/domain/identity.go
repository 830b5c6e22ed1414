package domain

import "time"

// Identity is an admin account.
type Identity struct {
	ID           string
	Username     string // Unique, case-sensitive, immutable
	PasswordHash string // Encoded cryptox digest; carries salt and KDF params
	Role         string
	MFASecret    string // Base32 TOTP secret
	CreatedAt    time.Time
	CreatedBy    string // Empty for the bootstrap owner
	Active       bool

	// Populated only on the value returned from creation. Stores keep
	// fingerprints of recovery codes, never the codes themselves.
	RecoveryCodes []string
	OTPAuthURL    string
}

// Public returns a copy with every credential field cleared, safe to log or
// serialize.
func (i Identity) Public() Identity {
	i.PasswordHash = ""
	i.MFASecret = ""
	i.RecoveryCodes = nil
	i.OTPAuthURL = ""
	return i
}
