// Package persona holds the fixed set of analyst roles that participate in
// a reconciliation session. Each analyst is a perspective plus system
// instructions; the set is resolved once at session start and never
// changes mid-session.
package persona

import "fmt"

// Analyst is one configured analytical perspective. Analysts are stateless
// across rounds except for the graph nodes assigned to them.
type Analyst struct {
	Role         string // Stable identifier, e.g. "architect"
	Name         string // Display name
	Instructions string // System prompt for every call this analyst makes
	Enabled      bool
}

// defaultOrder fixes the analyst ordering used for fan-out and tie-breaking.
// Map iteration order would make assignment load-balancing nondeterministic.
var defaultOrder = []string{
	"architect",
	"domain_expert",
	"skeptic",
	"integrator",
	"user_advocate",
}

func defaults() map[string]Analyst {
	return map[string]Analyst{
		"architect": {
			Role: "architect",
			Name: "Systems Architect",
			Instructions: "You analyse structure. Identify components, boundaries, and " +
				"dependencies. When comparing the two datasets, focus on whether the " +
				"implementation's structure can support each requirement.",
			Enabled: true,
		},
		"domain_expert": {
			Role: "domain_expert",
			Name: "Domain Expert",
			Instructions: "You know the problem domain deeply. Judge whether each " +
				"requirement is meaningfully realised, not just superficially mentioned, " +
				"and flag domain concepts the implementation ignores.",
			Enabled: true,
		},
		"skeptic": {
			Role: "skeptic",
			Name: "Skeptic",
			Instructions: "You assume claims are wrong until evidenced. Challenge " +
				"apparent alignments between the datasets, look for edge cases, and " +
				"prefer a false gap over a false alignment.",
			Enabled: true,
		},
		"integrator": {
			Role: "integrator",
			Name: "Integrator",
			Instructions: "You care about how parts connect. Trace cross-cutting " +
				"requirements through the implementation and surface integration seams " +
				"that exist in only one dataset.",
			Enabled: true,
		},
		"user_advocate": {
			Role: "user_advocate",
			Name: "User Advocate",
			Instructions: "You represent the people this system serves. Weigh each " +
				"requirement by user impact and call out implementation behaviour that " +
				"no requirement asked for.",
			Enabled: true,
		},
	}
}

// Override customizes one default analyst. Empty fields leave the default
// untouched; a nil Enabled leaves the analyst enabled.
type Override struct {
	Name         string
	Instructions string
	Enabled      *bool
}

// Registry is the resolved analyst set for one session.
type Registry struct {
	analysts map[string]Analyst
	order    []string
}

// NewRegistry resolves the default analyst set against per-role overrides.
// Unknown override roles are rejected: silently accepting a typo would run
// the session with an analyst the operator believes was customized.
func NewRegistry(overrides map[string]Override) (*Registry, error) {
	analysts := defaults()

	for role, o := range overrides {
		a, ok := analysts[role]
		if !ok {
			return nil, fmt.Errorf("unknown analyst role %q (known roles: %v)", role, defaultOrder)
		}

		if o.Name != "" {
			a.Name = o.Name
		}
		if o.Instructions != "" {
			a.Instructions = o.Instructions
		}
		if o.Enabled != nil {
			a.Enabled = *o.Enabled
		}
		analysts[role] = a
	}

	return &Registry{analysts: analysts, order: defaultOrder}, nil
}

// Active returns the enabled analysts in registry order.
func (r *Registry) Active() []Analyst {
	var active []Analyst
	for _, role := range r.order {
		if a := r.analysts[role]; a.Enabled {
			active = append(active, a)
		}
	}
	return active
}

// Get returns the analyst for a role, enabled or not.
func (r *Registry) Get(role string) (Analyst, bool) {
	a, ok := r.analysts[role]
	return a, ok
}

// Roles returns all known roles in registry order.
func (r *Registry) Roles() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
