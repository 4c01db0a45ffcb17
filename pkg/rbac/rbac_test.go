package rbac

import "testing"

func TestMemberCannotDecideJoinRequests(t *testing.T) {
	if HasPermission(RoleMember, PermissionDecideJoinRequest) {
		t.Fatal("member should not decide join requests")
	}
}

func TestAdminHasAllMemberPermissions(t *testing.T) {
	for _, p := range rolePermissions[RoleMember] {
		if !HasPermission(RoleAdmin, p) {
			t.Fatalf("admin missing member permission %q", p)
		}
	}
}

func TestUnknownRoleDeniedEverything(t *testing.T) {
	if err := CheckPermission("owner", PermissionReadEmail); err == nil {
		t.Fatal("expected denial for unknown role")
	}
}
