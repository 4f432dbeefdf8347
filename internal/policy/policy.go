// Package policy holds the role enum and the capability table every
// permission check goes through.
package policy

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
	RoleAdmin   Role = "admin"
)

type Capability int

const (
	ManageCatalog Capability = iota
	TakeTests
	ViewAllAttempts
	ViewChildren
	ModerateDoubts
	ViewAdminDashboard
	ViewTeacherDashboard
)

var capabilityNames = map[Capability]string{
	ManageCatalog:        "manage_catalog",
	TakeTests:            "take_tests",
	ViewAllAttempts:      "view_all_attempts",
	ViewChildren:         "view_children",
	ModerateDoubts:       "moderate_doubts",
	ViewAdminDashboard:   "view_admin_dashboard",
	ViewTeacherDashboard: "view_teacher_dashboard",
}

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

var grants = map[Role]map[Capability]bool{
	RoleStudent: {
		TakeTests: true,
	},
	RoleTeacher: {
		ManageCatalog:        true,
		ModerateDoubts:       true,
		ViewTeacherDashboard: true,
	},
	RoleParent: {
		ViewChildren: true,
	},
	RoleAdmin: {
		ManageCatalog:        true,
		ViewAllAttempts:      true,
		ModerateDoubts:       true,
		ViewAdminDashboard:   true,
		ViewTeacherDashboard: true,
	},
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := grants[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := grants[r]
	return ok
}

func (r Role) Can(c Capability) bool {
	return grants[r][c]
}

// Principal is the authenticated caller as seen by services.
type Principal struct {
	UserID uint
	Role   Role
}

func (p Principal) Can(c Capability) bool {
	return p.Role.Can(c)
}

func (p Principal) Is(r Role) bool {
	return p.Role == r
}
