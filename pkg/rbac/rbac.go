package rbac

import "fmt"

// Permissions over a team's mailbox.
const (
	PermissionObserveEmail  = "email:observe"
	PermissionReadEmail     = "email:read"
	PermissionAnnotateEmail = "email:annotate"

	// Admin-only team operations.
	PermissionDecideJoinRequest = "team:decide_join_request"
	PermissionTransferAdmin     = "team:transfer_admin"
	PermissionReplayOutbox      = "outbox:replay"
)

// Team roles.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

var rolePermissions = map[string][]string{
	RoleMember: {
		PermissionObserveEmail,
		PermissionReadEmail,
		PermissionAnnotateEmail,
	},
	RoleAdmin: {
		PermissionObserveEmail,
		PermissionReadEmail,
		PermissionAnnotateEmail,
		PermissionDecideJoinRequest,
		PermissionTransferAdmin,
		PermissionReplayOutbox,
	},
}

// HasPermission checks whether a role grants a permission.
func HasPermission(role, permission string) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission returns an error describing the denial, or nil.
func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return fmt.Errorf("role %q lacks permission %q", role, permission)
	}
	return nil
}
