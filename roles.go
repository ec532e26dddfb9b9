package gateway

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleTrader, RoleAdmin, RoleObserver:
		return true
	default:
		return false
	}
}

// CanTrade checks if this role may submit and cancel orders
func (r Role) CanTrade() bool {
	return r == RoleTrader
}

// CanManageAccounts checks if this role may enable, disable or re-role users
func (r Role) CanManageAccounts() bool {
	return r == RoleAdmin
}

// ParseRole safely parses a string into a Role type
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}

// roleOrDefault returns TRADER when no role was requested.
func roleOrDefault(r Role) Role {
	if r == "" {
		return RoleTrader
	}
	return r
}
