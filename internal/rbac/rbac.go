package rbac

// Role constants
const (
	RoleViewer  = "viewer"
	RoleManager = "manager"
)

// Permission constants
const (
	PermViewStakeholders   = "view_stakeholders"
	PermManageStakeholders = "manage_stakeholders"
	PermViewHistory        = "view_history"
	PermExportStakeholders = "export_stakeholders"
)

// RolePermissions defines what each project role can do.
var RolePermissions = map[string][]string{
	RoleViewer: {
		PermViewStakeholders, PermViewHistory, PermExportStakeholders,
	},
	RoleManager: {
		PermViewStakeholders, PermViewHistory, PermExportStakeholders,
		PermManageStakeholders,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsValidRole reports whether role is assignable to a project member.
func IsValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
