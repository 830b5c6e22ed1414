package domain

import "time"

// Audit actions.
const (
	ActionOwnerAccountCreated = "OWNER_ACCOUNT_CREATED"
	ActionCoOwnerInvited      = "CO_OWNER_INVITED"
	ActionCoOwnerRedeemed     = "CO_OWNER_REDEEMED"
	ActionRoleChanged         = "ROLE_CHANGED"
	ActionIdentityDeactivated = "IDENTITY_DEACTIVATED"
	ActionIdentityDeleted     = "IDENTITY_DELETED"
	ActionLoginSucceeded      = "LOGIN_SUCCEEDED"
	ActionLoginFailed         = "LOGIN_FAILED"
	ActionPermissionDenied    = "PERMISSION_DENIED"
)

// AuditEntry is immutable once appended. IDs are ULIDs generated from
// Timestamp, so ID order is time order.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Action    string
	ActorID   string
	Details   map[string]string
}

// AuditFilter selects entries. Zero fields match everything.
type AuditFilter struct {
	Action  string
	ActorID string
	Since   time.Time // inclusive
	Until   time.Time // exclusive

	// Before restricts to entries with ID < Before. Used for keyset paging.
	Before string

	// Limit caps the number of entries; 0 means no cap.
	Limit int
}

// Matches reports whether e satisfies every non-zero field except Limit.
func (f AuditFilter) Matches(e AuditEntry) bool {
	switch {
	case f.Action != "" && e.Action != f.Action:
		return false
	case f.ActorID != "" && e.ActorID != f.ActorID:
		return false
	case !f.Since.IsZero() && e.Timestamp.Before(f.Since):
		return false
	case !f.Until.IsZero() && !e.Timestamp.Before(f.Until):
		return false
	case f.Before != "" && e.ID >= f.Before:
		return false
	}
	return true
}
