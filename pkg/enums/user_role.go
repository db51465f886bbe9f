package enums

import "fmt"

// UserRole is the platform role carried in access tokens.
type UserRole string

const (
	UserRoleMember UserRole = "member"
	UserRoleAdmin  UserRole = "admin"
)

func (r UserRole) String() string {
	return string(r)
}

func (r UserRole) IsValid() bool {
	return r == UserRoleMember || r == UserRoleAdmin
}

func ParseUserRole(value string) (UserRole, error) {
	role := UserRole(value)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid user role %q", value)
	}
	return role, nil
}
