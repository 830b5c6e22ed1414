package domain

// Roles shipped in the default hierarchy.
const (
	RoleOwner     = "owner"
	RoleCoOwner   = "co_owner"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// Permissions the core itself checks.
const (
	PermUsersInvite = "users.invite"
	PermUsersManage = "users.manage"
	PermRolesRead   = "roles.read"
	PermAuditRead   = "audit.read"

	// PermRolesAssignPrefix + role name gates granting or revoking that role.
	PermRolesAssignPrefix = "roles.assign."
)

// RoleDefinition is static configuration loaded once at startup.
// Level is informational and never consulted for permission decisions.
type RoleDefinition struct {
	Name        string   `yaml:"name" json:"name"`
	Level       int      `yaml:"level" json:"level"`
	Permissions []string `yaml:"permissions" json:"permissions"`
	Inherits    []string `yaml:"inherits,omitempty" json:"inherits,omitempty"`
}
