package auth

// Roles assigned to employees. Permissions are derived from the role at
// token-issue time and travel inside the JWT claims, so the workflow
// engine only ever sees an Actor with explicit permissions.
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleFinance  = "finance"
	RoleAdmin    = "admin"
)

const (
	PermissionApproveRequests = "approve_requests"
	PermissionPayRequests     = "pay_requests"
	PermissionViewAllRequests = "view_all_requests"
	PermissionManageEmployees = "manage_employees"
)

func PermissionsForRole(role string) []string {
	switch role {
	case RoleManager:
		return []string{PermissionViewAllRequests, PermissionApproveRequests}
	case RoleFinance:
		return []string{PermissionViewAllRequests, PermissionPayRequests}
	case RoleAdmin:
		return []string{
			PermissionViewAllRequests,
			PermissionApproveRequests,
			PermissionPayRequests,
			PermissionManageEmployees,
		}
	default:
		return nil
	}
}
