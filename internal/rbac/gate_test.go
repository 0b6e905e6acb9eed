package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newGateFixture() *Gate {
	tree := chainFixture()
	return NewGate(NewResolver(tree), NewComparator(tree, "admin"))
}

func TestGateCapability(t *testing.T) {
	gate := newGateFixture()
	staff := userWith("staff")

	// Inherited capability counts the same as a direct one.
	assert.True(t, gate.Authorize(staff, Capability("admin")).Allowed)
	assert.True(t, gate.Authorize(staff, Capability("staff")).Allowed)

	decision := gate.Authorize(staff, Capability("auditor"))
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "auditor")
}

func TestGateMaxLevel(t *testing.T) {
	gate := newGateFixture()
	manager := userWith("manager")

	assert.True(t, gate.Authorize(manager, MaxLevel(1)).Allowed)
	assert.True(t, gate.Authorize(manager, MaxLevel(5)).Allowed)

	decision := gate.Authorize(manager, MaxLevel(0))
	assert.False(t, decision.Allowed)
	assert.NotEmpty(t, decision.Reason)
}

func TestGateNoRole(t *testing.T) {
	gate := newGateFixture()

	decision := gate.Authorize(User{}, MaxLevel(10))
	assert.False(t, decision.Allowed)
	assert.Equal(t, "actor holds no role", decision.Reason)

	assert.False(t, gate.Authorize(User{}, Capability("staff")).Allowed)
}

func TestGateIsPure(t *testing.T) {
	gate := newGateFixture()
	staff := userWith("staff")

	// Re-evaluation is side-effect free; callers may pre-check before
	// opening a write transaction.
	first := gate.Authorize(staff, Capability("admin"))
	second := gate.Authorize(staff, Capability("admin"))
	assert.Equal(t, first, second)
}
