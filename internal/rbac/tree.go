package rbac

import "sort"

// Tree is the in-memory arena of role records the engine operates on.
// Roles are indexed by code and reference their parent by code only;
// children are derived through a secondary index, never held as live
// pointers. A Tree is built from a consistent storage snapshot and is
// not safe for concurrent mutation.
type Tree struct {
	roles       map[string]*Role
	children    map[string][]string // parent code -> child codes, active or not
	assignments map[string]int      // role code -> active user assignments
}

// NewTree builds an arena from a snapshot of all role records (active and
// inactive) plus the number of active user assignments per role code.
func NewTree(roles []Role, assignments map[string]int) *Tree {
	t := &Tree{
		roles:       make(map[string]*Role, len(roles)),
		children:    make(map[string][]string),
		assignments: make(map[string]int, len(assignments)),
	}
	for i := range roles {
		r := roles[i]
		t.roles[r.Code] = &r
		if r.ParentCode != "" {
			t.children[r.ParentCode] = append(t.children[r.ParentCode], r.Code)
		}
	}
	for code, n := range assignments {
		t.assignments[code] = n
	}
	return t
}

// Get returns the role with the given code, active or not.
func (t *Tree) Get(code string) (Role, error) {
	r, ok := t.roles[code]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return *r, nil
}

// Create inserts a new role record. The code must be unused, including by
// soft-deleted roles, and a referenced parent must exist.
func (t *Tree) Create(role Role) error {
	if _, ok := t.roles[role.Code]; ok {
		return ErrDuplicateCode
	}
	if role.ParentCode != "" {
		if _, ok := t.roles[role.ParentCode]; !ok {
			return ErrParentNotFound
		}
	}
	r := role
	t.roles[r.Code] = &r
	if r.ParentCode != "" {
		t.children[r.ParentCode] = append(t.children[r.ParentCode], r.Code)
	}
	return nil
}

// Update applies a partial merge to the role. A parent change is validated
// against the forest invariant before anything is touched.
func (t *Tree) Update(code string, patch RolePatch) (Role, error) {
	r, ok := t.roles[code]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	if patch.ParentCode != nil && *patch.ParentCode != r.ParentCode {
		newParent := *patch.ParentCode
		if newParent != "" {
			if _, ok := t.roles[newParent]; !ok {
				return Role{}, ErrParentNotFound
			}
			if t.wouldCycle(code, newParent) {
				return Role{}, ErrInvalidHierarchy
			}
		}
		t.detachFromParent(code, r.ParentCode)
		r.ParentCode = newParent
		if newParent != "" {
			t.children[newParent] = append(t.children[newParent], code)
		}
	}
	if patch.DisplayName != nil {
		r.DisplayName = *patch.DisplayName
	}
	if patch.Description != nil {
		r.Description = *patch.Description
	}
	if patch.Level != nil {
		r.Level = *patch.Level
	}
	if patch.Color != nil {
		r.Color = *patch.Color
	}
	if patch.Icon != nil {
		r.Icon = *patch.Icon
	}
	return *r, nil
}

// SoftDelete marks the role inactive. The record and its assignments stay
// behind for history; deletion is blocked while active users hold the role
// or active children still point at it.
func (t *Tree) SoftDelete(code string) error {
	r, ok := t.roles[code]
	if !ok {
		return ErrRoleNotFound
	}
	if n := t.assignments[code]; n > 0 {
		return &RoleInUseError{Code: code, Assignments: n}
	}
	if kids := t.ActiveChildren(code); len(kids) > 0 {
		return &RoleHasChildrenError{Code: code, Children: len(kids)}
	}
	r.IsActive = false
	return nil
}

// ListActive returns the active roles ordered by level ascending, then
// code ascending.
func (t *Tree) ListActive() []Role {
	out := make([]Role, 0, len(t.roles))
	for _, r := range t.roles {
		if r.IsActive {
			out = append(out, *r)
		}
	}
	sortRoles(out)
	return out
}

// ActiveChildren returns the active roles whose parent is code.
func (t *Tree) ActiveChildren(code string) []Role {
	var out []Role
	for _, child := range t.children[code] {
		if r, ok := t.roles[child]; ok && r.IsActive {
			out = append(out, *r)
		}
	}
	sortRoles(out)
	return out
}

// AncestorChain walks from the role up through its parents. The role
// itself is always included, even when inactive, so audit callers can
// still inspect it; the climb stops before the first missing or inactive
// ancestor, which is how deactivating a mid-chain role cuts inheritance
// for everything beneath it.
func (t *Tree) AncestorChain(code string) ([]Role, error) {
	r, ok := t.roles[code]
	if !ok {
		return nil, ErrRoleNotFound
	}
	chain := []Role{*r}
	seen := map[string]bool{code: true}
	for cur := r; cur.ParentCode != ""; {
		parent, ok := t.roles[cur.ParentCode]
		if !ok || !parent.IsActive || seen[parent.Code] {
			break
		}
		chain = append(chain, *parent)
		seen[parent.Code] = true
		cur = parent
	}
	return chain, nil
}

// MaxLevel returns the largest level among all role records. The second
// return is false when the arena is empty.
func (t *Tree) MaxLevel() (int, bool) {
	found := false
	max := 0
	for _, r := range t.roles {
		if !found || r.Level > max {
			max = r.Level
			found = true
		}
	}
	return max, found
}

// wouldCycle reports whether pointing code at newParent would make the
// parent graph revisit code.
func (t *Tree) wouldCycle(code, newParent string) bool {
	seen := map[string]bool{}
	for cur := newParent; cur != ""; {
		if cur == code {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		r, ok := t.roles[cur]
		if !ok {
			return false
		}
		cur = r.ParentCode
	}
	return false
}

func (t *Tree) detachFromParent(code, parent string) {
	if parent == "" {
		return
	}
	kids := t.children[parent]
	for i, c := range kids {
		if c == code {
			t.children[parent] = append(kids[:i], kids[i+1:]...)
			return
		}
	}
}

func sortRoles(roles []Role) {
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Level != roles[j].Level {
			return roles[i].Level < roles[j].Level
		}
		return roles[i].Code < roles[j].Code
	})
}
