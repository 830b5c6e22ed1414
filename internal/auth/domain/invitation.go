package domain

import "time"

// InvitationTTL is the fixed redemption window.
const InvitationTTL = 24 * time.Hour

type Invitation struct {
	ID           string
	InviteeEmail string
	InviterID    string
	Role         string
	TokenHash    string // Fingerprint of Token; the only form that is persisted
	ExpiresAt    time.Time
	Used         bool
	UsedBy       string // Empty until redeemed
	CreatedAt    time.Time

	// Token is set only on the value returned from creation.
	Token string
}

// Expired reports whether now is past ExpiresAt.
func (inv Invitation) Expired(now time.Time) bool {
	return now.After(inv.ExpiresAt)
}
