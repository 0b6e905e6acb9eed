package rbac

// Resolver computes inherited capability codes over a role tree snapshot.
type Resolver struct {
	tree *Tree
}

// NewResolver builds a Resolver over the given tree.
func NewResolver(tree *Tree) *Resolver {
	return &Resolver{tree: tree}
}

// InheritedCodes returns the capability codes a role grants: its own code
// plus the codes of every active ancestor up the parent chain.
func (rs *Resolver) InheritedCodes(code string) (map[string]struct{}, error) {
	chain, err := rs.tree.AncestorChain(code)
	if err != nil {
		return nil, err
	}
	codes := make(map[string]struct{}, len(chain))
	for _, r := range chain {
		codes[r.Code] = struct{}{}
	}
	return codes, nil
}

// EffectiveCodes returns the union of inherited codes over the user's
// active assigned roles. Users with no active role get an empty set.
func (rs *Resolver) EffectiveCodes(user User) map[string]struct{} {
	codes := make(map[string]struct{})
	for _, assigned := range user.Roles {
		r, err := rs.tree.Get(assigned.Code)
		if err != nil || !r.IsActive {
			continue
		}
		inherited, err := rs.InheritedCodes(r.Code)
		if err != nil {
			continue
		}
		for c := range inherited {
			codes[c] = struct{}{}
		}
	}
	return codes
}

// HasCapability reports whether code is among the user's effective
// capability codes. Every flat permission check reduces to this.
func (rs *Resolver) HasCapability(user User, code string) bool {
	_, ok := rs.EffectiveCodes(user)[code]
	return ok
}
