package anonymizer

import (
	"strings"
)

// Scheme identifies a privacy model
type Scheme int

const (
	SchemeKAnonymity Scheme = iota + 1
	SchemeLDiversityDistinct
	SchemeLDiversityEntropy
	SchemeLDiversityRecursive
	SchemeTClosenessHierarchical
	SchemeTClosenessOrdered
	SchemeKMap
)

var schemeNames = map[Scheme]string{
	SchemeKAnonymity:             "k-anonymity",
	SchemeLDiversityDistinct:     "l-diversity/distinct",
	SchemeLDiversityEntropy:      "l-diversity/entropy",
	SchemeLDiversityRecursive:    "l-diversity/recursive",
	SchemeTClosenessHierarchical: "t-closeness/hierarchical",
	SchemeTClosenessOrdered:      "t-closeness/ordered",
	SchemeKMap:                   "k-map",
}

// ParseScheme maps an identifier to a Scheme, ignoring case. Unknown
// identifiers return false.
func ParseScheme(identifier string) (Scheme, bool) {
	id := strings.ToLower(strings.TrimSpace(identifier))
	for s, name := range schemeNames {
		if name == id {
			return s, true
		}
	}
	return 0, false
}

func (s Scheme) String() string {
	if name, ok := schemeNames[s]; ok {
		return name
	}
	return "unknown"
}

// Constraint is one privacy model of a job. The set of implementations is
// closed: KAnonymity, DistinctLDiversity, EntropyLDiversity,
// RecursiveCLDiversity, HierarchicalTCloseness, OrderedTCloseness and KMap.
type Constraint interface {
	Scheme() Scheme
	constraint()
}

// KAnonymity requires every generalized combination to be shared by K rows
type KAnonymity struct {
	K int
}

// DistinctLDiversity requires L distinct sensitive values per group
type DistinctLDiversity struct {
	Attribute string
	L         int
}

// EntropyLDiversity bounds the entropy of sensitive values per group
type EntropyLDiversity struct {
	Attribute string
	L         int
}

// RecursiveCLDiversity is recursive (c,l)-diversity
type RecursiveCLDiversity struct {
	Attribute string
	C         float64
	L         int
}

// HierarchicalTCloseness uses the attribute's hierarchy as ground distance
type HierarchicalTCloseness struct {
	Attribute string
	T         float64
	Hierarchy *Hierarchy
}

// OrderedTCloseness uses the default total order over raw values
type OrderedTCloseness struct {
	Attribute string
	T         float64
}

// KMap bounds re-identification risk against a reference population.
// Population is owned by this constraint alone.
type KMap struct {
	K          int
	Population *Table
}

func (KAnonymity) Scheme() Scheme             { return SchemeKAnonymity }
func (DistinctLDiversity) Scheme() Scheme     { return SchemeLDiversityDistinct }
func (EntropyLDiversity) Scheme() Scheme      { return SchemeLDiversityEntropy }
func (RecursiveCLDiversity) Scheme() Scheme   { return SchemeLDiversityRecursive }
func (HierarchicalTCloseness) Scheme() Scheme { return SchemeTClosenessHierarchical }
func (OrderedTCloseness) Scheme() Scheme      { return SchemeTClosenessOrdered }
func (KMap) Scheme() Scheme                   { return SchemeKMap }

func (KAnonymity) constraint()             {}
func (DistinctLDiversity) constraint()     {}
func (EntropyLDiversity) constraint()      {}
func (RecursiveCLDiversity) constraint()   {}
func (HierarchicalTCloseness) constraint() {}
func (OrderedTCloseness) constraint()      {}
func (KMap) constraint()                   {}

// ConstraintCompiler turns requested pets into typed constraints for one table
type ConstraintCompiler struct {
	table       *Table
	objects     []ObjectData
	hierarchies Hierarchies
	// extraContext is appended to every k-map reference population
	extraContext [][]ObjectData
}

// NewConstraintCompiler binds a compiler to the main table. objects are the
// composite records the table was assembled from; they seed every k-map
// reference population.
func NewConstraintCompiler(table *Table, objects []ObjectData, hierarchies Hierarchies) *ConstraintCompiler {
	return &ConstraintCompiler{
		table:       table,
		objects:     objects,
		hierarchies: hierarchies,
	}
}

// WithExtraContext adds row-sets to every k-map reference population
func (c *ConstraintCompiler) WithExtraContext(rowSets ...[]ObjectData) *ConstraintCompiler {
	c.extraContext = append(c.extraContext, rowSets...)
	return c
}

// Compile maps every recognized pet to a constraint. Unrecognized schemes are
// skipped and reported in the second return value.
func (c *ConstraintCompiler) Compile(pets []Pet) ([]Constraint, []string, error) {
	constraints := make([]Constraint, 0, len(pets))
	var ignored []string

	for i, p := range pets {
		scheme, ok := ParseScheme(p.Scheme)
		if !ok {
			ignored = append(ignored, p.Scheme)
			continue
		}
		constraint, err := c.compileOne(i, scheme, p.Metadata)
		if err != nil {
			return nil, ignored, err
		}
		constraints = append(constraints, constraint)
	}

	return constraints, ignored, nil
}

func (c *ConstraintCompiler) compileOne(index int, scheme Scheme, m PetMetadata) (Constraint, error) {
	rowCount := c.table.Len()

	switch scheme {
	case SchemeKAnonymity:
		k, err := requireK(index, scheme, m, rowCount)
		if err != nil {
			return nil, err
		}
		return KAnonymity{K: k}, nil

	case SchemeLDiversityDistinct:
		attribute, l, err := c.requireLDiversity(index, scheme, m, rowCount)
		if err != nil {
			return nil, err
		}
		return DistinctLDiversity{Attribute: attribute, L: l}, nil

	case SchemeLDiversityEntropy:
		attribute, l, err := c.requireLDiversity(index, scheme, m, rowCount)
		if err != nil {
			return nil, err
		}
		return EntropyLDiversity{Attribute: attribute, L: l}, nil

	case SchemeLDiversityRecursive:
		attribute, l, err := c.requireLDiversity(index, scheme, m, rowCount)
		if err != nil {
			return nil, err
		}
		if m.C == nil {
			return nil, validationErrorf("pet at index %d (%s) is missing 'c'", index, scheme)
		}
		if *m.C <= 0 {
			return nil, validationErrorf("pet at index %d (%s) requires c > 0, got %g", index, scheme, *m.C)
		}
		return RecursiveCLDiversity{Attribute: attribute, C: *m.C, L: l}, nil

	case SchemeTClosenessHierarchical:
		attribute, t, err := c.requireTCloseness(index, scheme, m)
		if err != nil {
			return nil, err
		}
		h := c.hierarchies.Get(attribute)
		if h == nil || h.Len() == 0 {
			return nil, validationErrorf("pet at index %d (%s) requires a hierarchy for attribute '%s'", index, scheme, attribute)
		}
		return HierarchicalTCloseness{Attribute: attribute, T: t, Hierarchy: h}, nil

	case SchemeTClosenessOrdered:
		attribute, t, err := c.requireTCloseness(index, scheme, m)
		if err != nil {
			return nil, err
		}
		return OrderedTCloseness{Attribute: attribute, T: t}, nil

	case SchemeKMap:
		k, err := requireK(index, scheme, m, rowCount)
		if err != nil {
			return nil, err
		}
		population, err := c.referencePopulation(m.Context)
		if err != nil {
			return nil, err
		}
		return KMap{K: k, Population: population}, nil
	}

	return nil, validationErrorf("pet at index %d has unsupported scheme %d", index, scheme)
}

// referencePopulation unions the main rows with every supplied context row-set
// and assembles them against the main schema
func (c *ConstraintCompiler) referencePopulation(context [][]ObjectData) (*Table, error) {
	size := len(c.objects)
	for _, set := range context {
		size += len(set)
	}
	for _, set := range c.extraContext {
		size += len(set)
	}

	population := make([]ObjectData, 0, size)
	population = append(population, c.objects...)
	for _, set := range context {
		population = append(population, set...)
	}
	for _, set := range c.extraContext {
		population = append(population, set...)
	}

	return AssembleTable(c.table.Schema, population)
}

func requireK(index int, scheme Scheme, m PetMetadata, rowCount int) (int, error) {
	if m.K == nil {
		return 0, validationErrorf("pet at index %d (%s) is missing 'k'", index, scheme)
	}
	k := *m.K
	if k < 1 {
		return 0, validationErrorf("pet at index %d (%s) requires k >= 1, got %d", index, scheme, k)
	}
	if k > rowCount {
		return 0, businessRuleErrorf("pet at index %d (%s): k = %d exceeds row count %d", index, scheme, k, rowCount)
	}
	return k, nil
}

func (c *ConstraintCompiler) requireAttribute(index int, scheme Scheme, m PetMetadata) (string, error) {
	if m.Attribute == "" {
		return "", validationErrorf("pet at index %d (%s) is missing 'attribute'", index, scheme)
	}
	if !c.table.Schema.Has(m.Attribute) {
		return "", schemaErrorf(ReasonUnknownAttribute,
			"pet at index %d (%s) references unknown attribute type '%s'", index, scheme, m.Attribute)
	}
	return m.Attribute, nil
}

func (c *ConstraintCompiler) requireLDiversity(index int, scheme Scheme, m PetMetadata, rowCount int) (string, int, error) {
	attribute, err := c.requireAttribute(index, scheme, m)
	if err != nil {
		return "", 0, err
	}
	if m.L == nil {
		return "", 0, validationErrorf("pet at index %d (%s) is missing 'l'", index, scheme)
	}
	l := *m.L
	if l < 1 {
		return "", 0, validationErrorf("pet at index %d (%s) requires l >= 1, got %d", index, scheme, l)
	}
	if l > rowCount {
		return "", 0, businessRuleErrorf("pet at index %d (%s): l = %d exceeds row count %d", index, scheme, l, rowCount)
	}
	return attribute, l, nil
}

func (c *ConstraintCompiler) requireTCloseness(index int, scheme Scheme, m PetMetadata) (string, float64, error) {
	attribute, err := c.requireAttribute(index, scheme, m)
	if err != nil {
		return "", 0, err
	}
	if m.T == nil {
		return "", 0, validationErrorf("pet at index %d (%s) is missing 't'", index, scheme)
	}
	if *m.T < 0 || *m.T > 1 {
		return "", 0, validationErrorf("pet at index %d (%s) requires 0 <= t <= 1, got %g", index, scheme, *m.T)
	}
	return attribute, *m.T, nil
}
