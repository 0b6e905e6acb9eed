package rbac

import "fmt"

// Comparator implements the authority ordering every management decision
// rests on. Lower level wins; equal levels never outrank each other. The
// root capability code is injected so the bypass policy stays testable
// with synthetic trees.
type Comparator struct {
	tree     *Tree
	rootCode string
}

// NewComparator builds a Comparator over the given tree.
func NewComparator(tree *Tree, rootCode string) *Comparator {
	return &Comparator{tree: tree, rootCode: rootCode}
}

// IsSuperiorTo reports whether a strictly outranks b.
func (c *Comparator) IsSuperiorTo(a, b Role) bool {
	return a.Level < b.Level
}

// LevelOf returns the level of the user's highest-authority role. The
// second return is false when the user holds no active role.
func (c *Comparator) LevelOf(user User) (int, bool) {
	r := c.highestRole(user)
	if r == nil {
		return 0, false
	}
	return r.Level, true
}

// CanManageUser decides whether actor may manage target. An actor with no
// role manages nobody; a target with no role is manageable by anyone who
// holds one; otherwise the actor's level must be strictly smaller, which
// rules out lateral and upward management.
func (c *Comparator) CanManageUser(actor, target User) bool {
	actorRole := c.highestRole(actor)
	if actorRole == nil {
		return false
	}
	targetRole := c.highestRole(target)
	if targetRole == nil {
		return true
	}
	return actorRole.Level < targetRole.Level
}

// CanOperateOnRole decides whether actor may run op against the target
// role, returning the denial reason alongside.
//
// The root-code bypass is checked before the target lookup: the root
// role's level 0 already beats every deeper role, but strict inequality
// would wrongly deny root operating on itself or on another level-0 role.
func (c *Comparator) CanOperateOnRole(actor User, targetCode string, op Operation) (bool, string) {
	actorRole := c.highestRole(actor)
	if actorRole == nil {
		return false, "actor holds no role"
	}
	if actorRole.Code == c.rootCode {
		return true, "root authority"
	}
	target, err := c.tree.Get(targetCode)
	if err != nil {
		return false, fmt.Sprintf("unknown role %s", targetCode)
	}
	switch op {
	case OpCreate, OpUpdate, OpDelete, OpAssign:
		if actorRole.Level >= target.Level {
			return false, fmt.Sprintf("cannot %s role at level %d from level %d", op, target.Level, actorRole.Level)
		}
	}
	return true, "authority check passed"
}

// highestRole resolves the user's highest-authority role against the tree
// so freshly deactivated roles never count.
func (c *Comparator) highestRole(user User) *Role {
	var best *Role
	for _, assigned := range user.Roles {
		r, err := c.tree.Get(assigned.Code)
		if err != nil || !r.IsActive {
			continue
		}
		if best == nil || r.Level < best.Level || (r.Level == best.Level && r.Code < best.Code) {
			cp := r
			best = &cp
		}
	}
	return best
}
