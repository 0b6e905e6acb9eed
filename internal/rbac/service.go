package rbac

import (
	"context"
	"errors"
	"strings"
)

// CreateRoleInput carries the fields for a new role. Level is optional:
// when absent the level derives from the parent (parent level + 1) or,
// for parentless roles, from the maximum existing level + 1.
type CreateRoleInput struct {
	Code        string
	DisplayName string
	Description string
	ParentCode  string
	Level       *int
	Color       string
	Icon        string
}

// Service is the role and assignment mutator. Every mutation runs inside
// a single repository transaction: read the current role set, validate
// the invariants against an in-memory tree, then write. The service holds
// no state of its own and never reads ambient actor identity; the actor
// is an explicit parameter on every call.
type Service struct {
	repo     Repository
	rootCode string
}

// NewService constructs the engine service. rootCode names the designated
// root authority role (the only role allowed to bypass level ordering).
func NewService(repo Repository, rootCode string) *Service {
	return &Service{repo: repo, rootCode: rootCode}
}

// RootCode exposes the configured root authority code.
func (s *Service) RootCode() string { return s.rootCode }

func loadTree(ctx context.Context, r Reader) (*Tree, error) {
	roles, err := r.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := r.CountActiveAssignments(ctx)
	if err != nil {
		return nil, err
	}
	return NewTree(roles, counts), nil
}

// Snapshot builds a tree plus its resolver, comparator and gate from a
// consistent read of the store.
func (s *Service) Snapshot(ctx context.Context) (*Tree, *Gate, error) {
	tree, err := loadTree(ctx, s.repo)
	if err != nil {
		return nil, nil, err
	}
	return tree, NewGate(NewResolver(tree), NewComparator(tree, s.rootCode)), nil
}

// Authorize evaluates the permission gate against a fresh snapshot. The
// decision itself is pure; only the snapshot read touches storage.
func (s *Service) Authorize(ctx context.Context, actor User, req Requirement) (Decision, error) {
	_, gate, err := s.Snapshot(ctx)
	if err != nil {
		return Decision{}, err
	}
	return gate.Authorize(actor, req), nil
}

// ResolveActor loads the user record for an authenticated user id so the
// surrounding layer can thread it into engine calls.
func (s *Service) ResolveActor(ctx context.Context, userID int64) (*User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// CanManageUserByEmail checks the authority ordering between the actor
// and the user behind email. Returns an AuthorizationDeniedError when the
// actor does not outrank the target.
func (s *Service) CanManageUserByEmail(ctx context.Context, actor User, email string) error {
	tree, err := loadTree(ctx, s.repo)
	if err != nil {
		return err
	}
	target, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	cmp := NewComparator(tree, s.rootCode)
	if !cmp.CanManageUser(actor, *target) {
		return denied("cannot manage a user of equal or higher authority")
	}
	return nil
}

// CreateRole creates a new role. Without a parent only the root authority
// may create it (a fresh top-level role answers to nobody); with a parent
// the actor must be allowed to operate on that parent.
func (s *Service) CreateRole(ctx context.Context, actor User, in CreateRoleInput) (Role, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.Code == "" {
		return Role{}, errors.New("rbac: role code required")
	}
	var created Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		tree, err := loadTree(ctx, tx)
		if err != nil {
			return err
		}
		cmp := NewComparator(tree, s.rootCode)
		if in.ParentCode != "" {
			if ok, reason := cmp.CanOperateOnRole(actor, in.ParentCode, OpCreate); !ok {
				return denied(reason)
			}
		} else {
			highest := cmp.highestRole(actor)
			if highest == nil || highest.Code != s.rootCode {
				return denied("only the root authority may create top-level roles")
			}
		}
		if _, err := tree.Get(in.Code); err == nil {
			return ErrDuplicateCode
		}
		var parent *Role
		if in.ParentCode != "" {
			p, err := tree.Get(in.ParentCode)
			if err != nil {
				return ErrParentNotFound
			}
			parent = &p
		}
		level := 0
		switch {
		case in.Level != nil:
			level = *in.Level
		case parent != nil:
			level = parent.Level + 1
		default:
			if max, ok := tree.MaxLevel(); ok {
				level = max + 1
			}
		}
		role := Role{
			Code:        in.Code,
			DisplayName: in.DisplayName,
			Description: in.Description,
			Level:       level,
			ParentCode:  in.ParentCode,
			Color:       in.Color,
			Icon:        in.Icon,
			IsActive:    true,
		}
		if err := tree.Create(role); err != nil {
			return err
		}
		created, err = tx.InsertRole(ctx, role)
		return err
	})
	if err != nil {
		return Role{}, err
	}
	return created, nil
}

// UpdateRole merges the patch into an existing role. The code never
// changes; parent changes are validated against the forest invariant.
func (s *Service) UpdateRole(ctx context.Context, actor User, code string, patch RolePatch) (Role, error) {
	var updated Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		tree, err := loadTree(ctx, tx)
		if err != nil {
			return err
		}
		cmp := NewComparator(tree, s.rootCode)
		if ok, reason := cmp.CanOperateOnRole(actor, code, OpUpdate); !ok {
			return denied(reason)
		}
		updated, err = tree.Update(code, patch)
		if err != nil {
			return err
		}
		return tx.UpdateRole(ctx, code, patch)
	})
	if err != nil {
		return Role{}, err
	}
	return updated, nil
}

// DeleteRole soft-deletes a role. Roles still held by active users or
// still parenting active children cannot go.
func (s *Service) DeleteRole(ctx context.Context, actor User, code string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		tree, err := loadTree(ctx, tx)
		if err != nil {
			return err
		}
		cmp := NewComparator(tree, s.rootCode)
		if ok, reason := cmp.CanOperateOnRole(actor, code, OpDelete); !ok {
			return denied(reason)
		}
		if err := tree.SoftDelete(code); err != nil {
			return err
		}
		return tx.DeactivateRole(ctx, code)
	})
}

// AssignRole appends a role to a user's direct assignments. The actor
// must pass both checks: authority over the role being handed out and
// authority over the target user.
func (s *Service) AssignRole(ctx context.Context, actor User, userEmail, roleCode string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		tree, err := loadTree(ctx, tx)
		if err != nil {
			return err
		}
		target, err := tx.GetUserByEmail(ctx, userEmail)
		if err != nil {
			return err
		}
		role, err := tree.Get(roleCode)
		if err != nil || !role.IsActive {
			return ErrRoleNotFound
		}
		cmp := NewComparator(tree, s.rootCode)
		if ok, reason := cmp.CanOperateOnRole(actor, roleCode, OpAssign); !ok {
			return denied(reason)
		}
		if !cmp.CanManageUser(actor, *target) {
			return denied("cannot manage a user of equal or higher authority")
		}
		if target.HasRoleCode(roleCode) {
			return ErrAlreadyAssigned
		}
		return tx.AddUserRole(ctx, target.ID, roleCode)
	})
}

// RemoveRole detaches a role from a user's direct assignments.
func (s *Service) RemoveRole(ctx context.Context, actor User, userEmail, roleCode string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		tree, err := loadTree(ctx, tx)
		if err != nil {
			return err
		}
		target, err := tx.GetUserByEmail(ctx, userEmail)
		if err != nil {
			return err
		}
		if _, err := tree.Get(roleCode); err != nil {
			return ErrRoleNotFound
		}
		cmp := NewComparator(tree, s.rootCode)
		if ok, reason := cmp.CanOperateOnRole(actor, roleCode, OpAssign); !ok {
			return denied(reason)
		}
		if !cmp.CanManageUser(actor, *target) {
			return denied("cannot manage a user of equal or higher authority")
		}
		if !target.HasRoleCode(roleCode) {
			return ErrNotAssigned
		}
		return tx.RemoveUserRole(ctx, target.ID, roleCode)
	})
}

// BulkSetRoles replaces a user's role set in one shot. All-or-nothing:
// every code must exist, be active and individually pass the assign
// check, otherwise nothing is written.
func (s *Service) BulkSetRoles(ctx context.Context, actor User, userEmail string, roleCodes []string) error {
	codes := dedupe(roleCodes)
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		tree, err := loadTree(ctx, tx)
		if err != nil {
			return err
		}
		target, err := tx.GetUserByEmail(ctx, userEmail)
		if err != nil {
			return err
		}
		cmp := NewComparator(tree, s.rootCode)
		if !cmp.CanManageUser(actor, *target) {
			return denied("cannot manage a user of equal or higher authority")
		}
		for _, code := range codes {
			role, err := tree.Get(code)
			if err != nil || !role.IsActive {
				return ErrRoleNotFound
			}
			if ok, reason := cmp.CanOperateOnRole(actor, code, OpAssign); !ok {
				return denied(reason)
			}
		}
		return tx.ReplaceUserRoles(ctx, target.ID, codes)
	})
}

// ListActive returns the active roles ordered by level then code.
func (s *Service) ListActive(ctx context.Context) ([]Role, error) {
	tree, err := loadTree(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	return tree.ListActive(), nil
}

// ManageableRolesFor lists the active roles strictly below the actor's
// highest role, the set the actor is allowed to hand out or edit.
func (s *Service) ManageableRolesFor(ctx context.Context, actor User) ([]Role, error) {
	tree, err := loadTree(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	cmp := NewComparator(tree, s.rootCode)
	level, ok := cmp.LevelOf(actor)
	if !ok {
		return []Role{}, nil
	}
	var out []Role
	for _, r := range tree.ListActive() {
		if r.Level > level {
			out = append(out, r)
		}
	}
	if out == nil {
		out = []Role{}
	}
	return out, nil
}

// RoleHierarchyTree returns the active roles as a forest. Roots are roles
// without a parent plus roles whose parent is missing or inactive, since
// inheritance no longer reaches past those.
func (s *Service) RoleHierarchyTree(ctx context.Context) ([]*RoleNode, error) {
	tree, err := loadTree(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	var roots []*RoleNode
	for _, r := range tree.ListActive() {
		if isHierarchyRoot(tree, r) {
			roots = append(roots, buildNode(tree, r, map[string]bool{}))
		}
	}
	if roots == nil {
		roots = []*RoleNode{}
	}
	return roots, nil
}

func isHierarchyRoot(tree *Tree, r Role) bool {
	if r.ParentCode == "" {
		return true
	}
	parent, err := tree.Get(r.ParentCode)
	return err != nil || !parent.IsActive
}

func buildNode(tree *Tree, r Role, seen map[string]bool) *RoleNode {
	seen[r.Code] = true
	node := &RoleNode{Role: r, Children: []*RoleNode{}}
	for _, child := range tree.ActiveChildren(r.Code) {
		if seen[child.Code] {
			continue
		}
		node.Children = append(node.Children, buildNode(tree, child, seen))
	}
	return node
}

func dedupe(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
