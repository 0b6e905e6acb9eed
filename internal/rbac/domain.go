package rbac

import "time"

// Operation identifies a privileged role operation subject to authority checks.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpAssign Operation = "assign"
)

// Role is a named authority level. Roles form a forest through ParentCode;
// a role inherits the capability codes of every active ancestor.
// Lower Level means higher authority; the root role sits at level 0.
type Role struct {
	ID          int64
	Code        string
	DisplayName string
	Description string
	Level       int
	ParentCode  string // empty for top-level roles
	Color       string
	Icon        string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RolePatch carries a partial update. Only non-nil fields are applied;
// Code is immutable and therefore absent. Setting ParentCode to a pointer
// at the empty string detaches the role from its parent.
type RolePatch struct {
	DisplayName *string
	Description *string
	Level       *int
	ParentCode  *string
	Color       *string
	Icon        *string
}

// User is the actor identity the engine receives from the surrounding
// layer. Roles holds the directly assigned roles as loaded from storage,
// including ones that have since been deactivated; inactive roles are
// ignored by every authority computation.
type User struct {
	ID       int64
	Email    string
	IsActive bool
	Roles    []Role
}

// HighestRole returns the active assigned role with the smallest level.
// Ties break by code ascending so the result is deterministic. Nil when
// the user holds no active role.
func (u User) HighestRole() *Role {
	var best *Role
	for i := range u.Roles {
		r := &u.Roles[i]
		if !r.IsActive {
			continue
		}
		if best == nil || r.Level < best.Level || (r.Level == best.Level && r.Code < best.Code) {
			best = r
		}
	}
	return best
}

// HasRoleCode reports whether the role code is among the user's direct
// assignments, active or not.
func (u User) HasRoleCode(code string) bool {
	for i := range u.Roles {
		if u.Roles[i].Code == code {
			return true
		}
	}
	return false
}

// RoleNode is one node of the role hierarchy tree returned to callers.
type RoleNode struct {
	Role     Role
	Children []*RoleNode
}
