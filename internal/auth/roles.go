// Package auth defines the role model used to gate tool execution.
package auth

import "fmt"

// Role is a caller privilege level. Roles are totally ordered: readonly <
// dev < operator < admin.
type Role string

const (
	RoleReadonly Role = "readonly"
	RoleDev      Role = "dev"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// roleLevels maps each role to its privilege level.
var roleLevels = map[Role]int{
	RoleReadonly: 0,
	RoleDev:      1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// Level returns the privilege level of the role (0..3). Unknown roles
// map to -1.
func (r Role) Level() int {
	if lvl, ok := roleLevels[r]; ok {
		return lvl
	}
	return -1
}

// AtLeast reports whether r carries at least the privilege of other.
func (r Role) AtLeast(other Role) bool {
	return r.Level() >= other.Level()
}

// Parse converts a string to a Role, failing on unknown values.
func Parse(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role: %q", s)
	}
	return r, nil
}

// All returns every role in ascending privilege order.
func All() []Role {
	return []Role{RoleReadonly, RoleDev, RoleOperator, RoleAdmin}
}
