package rbac

import "fmt"

// Requirement is what a privileged entry point demands from its actor:
// either an effective capability code or an authority-level ceiling.
type Requirement struct {
	capability string
	maxLevel   int
	byLevel    bool
}

// Capability requires the actor's effective codes to contain code.
func Capability(code string) Requirement {
	return Requirement{capability: code}
}

// MaxLevel requires the actor's highest role to sit at level or above
// (numerically at most level).
func MaxLevel(level int) Requirement {
	return Requirement{maxLevel: level, byLevel: true}
}

// Decision is the gate's verdict. Reason is populated on denial.
type Decision struct {
	Allowed bool
	Reason  string
}

// Gate is the pure precondition check wrapped around every privileged
// operation. It performs no I/O and may be evaluated repeatedly, so
// callers can pre-check before opening a write transaction.
type Gate struct {
	resolver   *Resolver
	comparator *Comparator
}

// NewGate builds a Gate over snapshot-backed helpers.
func NewGate(resolver *Resolver, comparator *Comparator) *Gate {
	return &Gate{resolver: resolver, comparator: comparator}
}

// Authorize decides whether actor satisfies the requirement.
func (g *Gate) Authorize(actor User, req Requirement) Decision {
	if req.byLevel {
		level, ok := g.comparator.LevelOf(actor)
		if !ok {
			return Decision{Reason: "actor holds no role"}
		}
		if level > req.maxLevel {
			return Decision{Reason: fmt.Sprintf("requires level %d or higher, actor is at level %d", req.maxLevel, level)}
		}
		return Decision{Allowed: true}
	}
	if !g.resolver.HasCapability(actor, req.capability) {
		return Decision{Reason: fmt.Sprintf("missing capability %s", req.capability)}
	}
	return Decision{Allowed: true}
}
