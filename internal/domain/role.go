package domain

import "slices"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
	RoleDriver   = "driver"
)

// ValidRoles returns the set of valid user roles.
func ValidRoles() []string {
	return []string{RoleCustomer, RoleAdmin, RoleDriver}
}

func IsValidRole(role string) bool {
	return slices.Contains(ValidRoles(), role)
}
