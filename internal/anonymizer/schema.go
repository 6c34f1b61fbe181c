package anonymizer

import (
	"sort"
	"strings"
)

// Schema is the frozen, ordered list of attribute names for one request
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema builds a schema from ordered attribute names. Duplicate names
// keep the position of their first occurrence.
func NewSchema(names ...string) Schema {
	s := Schema{
		names: make([]string, 0, len(names)),
		index: make(map[string]int, len(names)),
	}
	for _, name := range names {
		if _, exists := s.index[name]; exists {
			continue
		}
		s.index[name] = len(s.names)
		s.names = append(s.names, name)
	}
	return s
}

// InferSchema reads attribute names strictly from the first object
func InferSchema(objects []ObjectData) (Schema, error) {
	if len(objects) == 0 {
		return Schema{}, validationErrorf("unable to determine attribute names: no objects")
	}

	first := objects[0]
	if len(first.Values) == 0 {
		return Schema{}, validationErrorf("unable to determine attribute names: first object contains no attributes")
	}

	names := make([]string, 0, len(first.Values))
	for i, a := range first.Values {
		if a.Type == nil {
			return Schema{}, schemaErrorf(ReasonMissingField,
				"attribute at index %d from object at index 0 is missing a 'type' field", i)
		}
		names = append(names, *a.Type)
	}

	schema := NewSchema(names...)
	if schema.Len() != len(names) {
		return Schema{}, validationErrorf("first object declares duplicate attribute names")
	}
	return schema, nil
}

// Len returns the schema cardinality
func (s Schema) Len() int {
	return len(s.names)
}

// Names returns a copy of the ordered attribute names
func (s Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Name returns the attribute at position i
func (s Schema) Name(i int) string {
	return s.names[i]
}

// IndexOf returns the position of name, or -1
func (s Schema) IndexOf(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Has reports whether name is part of the schema
func (s Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Key is an order-independent identifier of the attribute set
func (s Schema) Key() string {
	sorted := s.Names()
	sort.Strings(sorted)
	return strings.Join(sorted, "\x1f")
}
