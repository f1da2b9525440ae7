package criteria

import "fmt"

// Registry is a simple, ordered, in-memory criterion registry. Criteria are
// evaluated in registration order. Register panics on wiring mistakes
// (duplicate names, active criteria without a resource type) so a bad
// catalogue fails at startup, never mid-audit.
type Registry struct {
	criteria []Criterion
	index    map[string]int
}

// NewRegistry returns an empty registry ready for criterion registration.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds c to the registry.
func (r *Registry) Register(c Criterion) {
	if c.Name == "" {
		panic("criterion registered without a name")
	}
	if _, exists := r.index[c.Name]; exists {
		panic(fmt.Sprintf("duplicate criterion name: %q", c.Name))
	}
	if c.Active && (c.ResourceType == "" || c.ResourceType == "*") {
		panic(fmt.Sprintf("active criterion %q has no resource type", c.Name))
	}
	if c.GetData == nil || c.Translate == nil || c.Evaluate == nil {
		panic(fmt.Sprintf("criterion %q is missing a strategy function", c.Name))
	}
	r.criteria = append(r.criteria, c)
	r.index[c.Name] = len(r.criteria) - 1
}

// All returns every registered criterion in registration order.
func (r *Registry) All() []Criterion {
	return r.criteria
}

// Active returns the active criteria in registration order, excluding any
// whose name appears in disabled.
func (r *Registry) Active(disabled []string) []Criterion {
	off := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		off[name] = true
	}
	var active []Criterion
	for _, c := range r.criteria {
		if c.Active && !off[c.Name] {
			active = append(active, c)
		}
	}
	return active
}

// Get returns the criterion registered under name.
func (r *Registry) Get(name string) (Criterion, bool) {
	pos, ok := r.index[name]
	if !ok {
		return Criterion{}, false
	}
	return r.criteria[pos], true
}
