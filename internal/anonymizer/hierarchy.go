package anonymizer

// ConflictPolicy decides what happens when two rows declare different chains
// for the same concrete value
type ConflictPolicy string

const (
	// ConflictLastWriteWins keeps the chain declared last
	ConflictLastWriteWins ConflictPolicy = "last_write_wins"
	// ConflictReject fails the request with a validation error
	ConflictReject ConflictPolicy = "reject"
)

// Hierarchy maps concrete values to their generalization chain, most specific first
type Hierarchy struct {
	order  []string
	chains map[string][]string
}

// NewHierarchy creates an empty hierarchy
func NewHierarchy() *Hierarchy {
	return &Hierarchy{chains: make(map[string][]string)}
}

// Set registers chain for value. A value keeps the position of its first
// registration; a later Set replaces the chain.
func (h *Hierarchy) Set(value string, chain []string) {
	if _, exists := h.chains[value]; !exists {
		h.order = append(h.order, value)
	}
	c := make([]string, len(chain))
	copy(c, chain)
	h.chains[value] = c
}

// Chain returns the chain registered for value
func (h *Hierarchy) Chain(value string) ([]string, bool) {
	c, ok := h.chains[value]
	return c, ok
}

// Len returns the number of registered values
func (h *Hierarchy) Len() int {
	return len(h.order)
}

// Rows returns every chain in registration order
func (h *Hierarchy) Rows() [][]string {
	rows := make([][]string, 0, len(h.order))
	for _, v := range h.order {
		rows = append(rows, h.chains[v])
	}
	return rows
}

// Hierarchies holds one hierarchy per attribute name
type Hierarchies map[string]*Hierarchy

// Get returns the hierarchy of an attribute, or nil
func (hs Hierarchies) Get(attribute string) *Hierarchy {
	return hs[attribute]
}

// HierarchyBuilder accumulates hierarchies across records
type HierarchyBuilder struct {
	policy      ConflictPolicy
	hierarchies Hierarchies
}

// NewHierarchyBuilder creates a builder with the given conflict policy
func NewHierarchyBuilder(policy ConflictPolicy) *HierarchyBuilder {
	if policy == "" {
		policy = ConflictLastWriteWins
	}
	return &HierarchyBuilder{
		policy:      policy,
		hierarchies: make(Hierarchies),
	}
}

// Add registers chain under attribute, keyed by its first element
func (b *HierarchyBuilder) Add(attribute string, chain []string) error {
	if len(chain) == 0 {
		return validationErrorf("empty hierarchy for attribute '%s'", attribute)
	}

	h, ok := b.hierarchies[attribute]
	if !ok {
		h = NewHierarchy()
		b.hierarchies[attribute] = h
	}

	value := chain[0]
	if existing, found := h.Chain(value); found && !equalChains(existing, chain) {
		if b.policy == ConflictReject {
			return validationErrorf("conflicting hierarchies for value '%s' of attribute '%s'", value, attribute)
		}
	}
	h.Set(value, chain)
	return nil
}

// Build returns the accumulated hierarchies
func (b *HierarchyBuilder) Build() Hierarchies {
	return b.hierarchies
}

// BuildFlatHierarchy inserts each value's chain verbatim as its generalization
// path. A chain starts with the value it generalizes.
func BuildFlatHierarchy(data []AttributeData) (*Hierarchy, error) {
	h := NewHierarchy()
	for i, d := range data {
		if len(d.Hierarchies) == 0 {
			return nil, validationErrorf("value at index %d has an empty hierarchy", i)
		}
		if d.Hierarchies[0] != d.Value {
			return nil, validationErrorf("hierarchy of value at index %d must start with '%s', got '%s'",
				i, d.Value, d.Hierarchies[0])
		}
		h.Set(d.Value, d.Hierarchies)
	}
	return h, nil
}

// BuildObjectHierarchies accumulates the declared entries of every object
func BuildObjectHierarchies(objects []ObjectData, policy ConflictPolicy) (Hierarchies, error) {
	b := NewHierarchyBuilder(policy)
	for _, o := range objects {
		for _, entry := range o.Hierarchies {
			if err := b.Add(entry.Type, entry.Values); err != nil {
				return nil, err
			}
		}
	}
	return b.Build(), nil
}

func equalChains(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
