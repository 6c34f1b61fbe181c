package anonymizer

// FlatAttributeName is the single schema column used for flat-attribute requests
const FlatAttributeName = "Attribute"

// AttributeData is one value of a flat-attribute request with its generalization chain
type AttributeData struct {
	Value       string   `json:"value"`
	Hierarchies []string `json:"hierarchies"`
}

// AttributeRequest anonymizes a single logical column
type AttributeRequest struct {
	Data []AttributeData `json:"data"`
	Pets []Pet           `json:"pets"`
}

// Attribute is a named value inside an object. Both fields are pointers so a
// JSON null can be told apart from an empty string.
type Attribute struct {
	Type  *string `json:"type"`
	Value *string `json:"value"`
}

// HierarchyEntry declares the generalization chain of one attribute value
type HierarchyEntry struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

// ObjectData is one composite record
type ObjectData struct {
	Values      []Attribute      `json:"values"`
	Hierarchies []HierarchyEntry `json:"hierarchies"`
}

// ObjectRequest anonymizes rows of named attributes
type ObjectRequest struct {
	Data []ObjectData `json:"data"`
	Pets []Pet        `json:"pets"`
}

// Pet names a privacy scheme and its parameters
type Pet struct {
	Scheme   string      `json:"scheme"`
	Metadata PetMetadata `json:"metadata"`
}

// PetMetadata is the union of all scheme parameters; each scheme reads only
// the fields it needs.
type PetMetadata struct {
	K         *int           `json:"k,omitempty"`
	Attribute string         `json:"attribute,omitempty"`
	L         *int           `json:"l,omitempty"`
	C         *float64       `json:"c,omitempty"`
	T         *float64       `json:"t,omitempty"`
	Context   [][]ObjectData `json:"context,omitempty"`
}

// Entry is one (attribute name, value) pair of a response row
type Entry struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Result is the reconciled response of one request
type Result struct {
	Rows         [][]Entry
	OptimumFound bool
	// Schemes lists the constraints the job was compiled with
	Schemes []string
	// Ignored lists scheme identifiers that were not recognized
	Ignored []string
}

// Attributes flattens a single-column result into one entry per input value
func (r *Result) Attributes() []Entry {
	entries := make([]Entry, 0, len(r.Rows))
	for _, row := range r.Rows {
		entries = append(entries, row...)
	}
	return entries
}

// NewAttribute builds an Attribute from plain strings
func NewAttribute(name, value string) Attribute {
	return Attribute{Type: &name, Value: &value}
}
