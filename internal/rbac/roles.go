package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner      = "owner"
	RoleDispatcher = "dispatcher"
	RoleTechnician = "technician"
	RoleBookkeeper = "bookkeeper"
	RoleSuperAdmin = "super_admin"
	RoleSupportOps = "support_ops" // hidden role
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleSupportOps }
