package adminsdk

import "time"

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// LoginResponse is returned by POST /v1/login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	IdentityID  string `json:"identity_id"`
	Role        string `json:"role"`
}

// InviteResponse is returned by POST /v1/invites. Token is shown only here.
type InviteResponse struct {
	ID           string    `json:"id"`
	InviteeEmail string    `json:"invitee_email"`
	Role         string    `json:"role"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IdentityResponse is the public view of an identity. Credentials are never
// included.
type IdentityResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// RedeemResponse is returned by POST /v1/invites/redeem. The second factor
// is shown only here and must be saved by the new co-owner.
type RedeemResponse struct {
	IdentityResponse

	MFASecret     string   `json:"mfa_secret"`
	OTPAuthURL    string   `json:"otpauth_url"`
	RecoveryCodes []string `json:"recovery_codes"`
}

// RoleInfo describes one configured role.
type RoleInfo struct {
	Name        string   `json:"name"`
	Level       int      `json:"level"`
	Permissions []string `json:"permissions"`
	Inherits    []string `json:"inherits,omitempty"`
}

// RolesResponse lists roles by descending level.
type RolesResponse struct {
	Roles []RoleInfo `json:"roles"`
}

// AuditEntry mirrors a stored audit entry.
type AuditEntry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	ActorID   string            `json:"actor_id"`
	Details   map[string]string `json:"details,omitempty"`
}

// AuditQuery filters GET /v1/audit. Zero fields are ignored.
type AuditQuery struct {
	Action  string
	ActorID string
	Since   time.Time
	Limit   int
}

// AuditResponse lists entries newest first.
type AuditResponse struct {
	Entries []AuditEntry `json:"entries"`
}

// HealthChecks is the per-dependency status reported by /readyz.
type HealthChecks struct {
	Database      string `json:"database"`
	Signer        string `json:"signer"`
	AuditFailures uint64 `json:"audit_failures"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
