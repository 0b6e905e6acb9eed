package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func TestInheritedCodesFullChain(t *testing.T) {
	rs := NewResolver(chainFixture())

	inherited, err := rs.InheritedCodes("staff")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"staff", "manager", "admin"}, codes(inherited))
}

func TestInheritedCodesCutByInactiveAncestor(t *testing.T) {
	tree := NewTree([]Role{
		{Code: "admin", Level: 0, IsActive: true},
		{Code: "manager", Level: 1, ParentCode: "admin", IsActive: false},
		{Code: "staff", Level: 2, ParentCode: "manager", IsActive: true},
	}, nil)
	rs := NewResolver(tree)

	inherited, err := rs.InheritedCodes("staff")
	require.NoError(t, err)
	// Deactivating the middle role cuts everything above it as well.
	assert.ElementsMatch(t, []string{"staff"}, codes(inherited))
}

func TestEffectiveCodesUnionOverRoles(t *testing.T) {
	tree := NewTree([]Role{
		{Code: "admin", Level: 0, IsActive: true},
		{Code: "manager", Level: 1, ParentCode: "admin", IsActive: true},
		{Code: "auditor", Level: 1, IsActive: true},
	}, nil)
	rs := NewResolver(tree)

	user := User{Roles: []Role{
		{Code: "manager", Level: 1, IsActive: true},
		{Code: "auditor", Level: 1, IsActive: true},
	}}
	assert.ElementsMatch(t, []string{"manager", "admin", "auditor"}, codes(rs.EffectiveCodes(user)))
}

func TestEffectiveCodesSkipsInactiveAssignments(t *testing.T) {
	tree := NewTree([]Role{
		{Code: "admin", Level: 0, IsActive: true},
		{Code: "manager", Level: 1, ParentCode: "admin", IsActive: false},
	}, nil)
	rs := NewResolver(tree)

	user := User{Roles: []Role{{Code: "manager", Level: 1, IsActive: true}}}
	assert.Empty(t, rs.EffectiveCodes(user))
}

func TestEffectiveCodesNoRoles(t *testing.T) {
	rs := NewResolver(chainFixture())
	assert.Empty(t, rs.EffectiveCodes(User{}))
}

func TestHasCapability(t *testing.T) {
	rs := NewResolver(chainFixture())
	user := User{Roles: []Role{{Code: "staff", Level: 2, IsActive: true}}}

	assert.True(t, rs.HasCapability(user, "admin"))
	assert.True(t, rs.HasCapability(user, "staff"))
	assert.False(t, rs.HasCapability(user, "auditor"))
}
