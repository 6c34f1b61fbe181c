package anonymizer

// Row is a sequence of values aligned to a schema
type Row []string

// Table is a schema-ordered, row-major table
type Table struct {
	Schema Schema
	Rows   []Row
}

// Len returns the row count
func (t *Table) Len() int {
	return len(t.Rows)
}

// Column returns every value of the attribute at position i, in row order
func (t *Table) Column(i int) []string {
	col := make([]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		col = append(col, r[i])
	}
	return col
}

// AssembleTable places each declared (name, value) pair at the schema
// position of its name. Records are processed independently; the first
// failing record aborts the whole assembly.
func AssembleTable(schema Schema, objects []ObjectData) (*Table, error) {
	table := &Table{
		Schema: schema,
		Rows:   make([]Row, 0, len(objects)),
	}

	for objectIndex, o := range objects {
		row, err := assembleRow(schema, objectIndex, o)
		if err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// FlatTable builds the single-column table of a flat-attribute request
func FlatTable(data []AttributeData) *Table {
	table := &Table{
		Schema: NewSchema(FlatAttributeName),
		Rows:   make([]Row, 0, len(data)),
	}
	for _, d := range data {
		table.Rows = append(table.Rows, Row{d.Value})
	}
	return table
}

func assembleRow(schema Schema, objectIndex int, o ObjectData) (Row, error) {
	if len(o.Values) != schema.Len() {
		return nil, schemaErrorf(ReasonSchemaMismatch,
			"object at index %d has mismatched attribute count: %d != %d",
			objectIndex, len(o.Values), schema.Len())
	}
	// Hierarchy entries are optional, but when present there is one per attribute
	if len(o.Hierarchies) > 0 && len(o.Hierarchies) != schema.Len() {
		return nil, schemaErrorf(ReasonSchemaMismatch,
			"object at index %d has mismatching attribute/hierarchies count: %d != %d",
			objectIndex, len(o.Values), len(o.Hierarchies))
	}
	for _, h := range o.Hierarchies {
		if !schema.Has(h.Type) {
			return nil, schemaErrorf(ReasonUnknownAttribute,
				"object at index %d declares a hierarchy for unknown attribute type '%s'", objectIndex, h.Type)
		}
	}

	row := make(Row, schema.Len())
	filled := make([]bool, schema.Len())
	for attributeIndex, a := range o.Values {
		if a.Type == nil {
			return nil, schemaErrorf(ReasonMissingField,
				"attribute at index %d from object at index %d is missing a 'type' field",
				attributeIndex, objectIndex)
		}
		if a.Value == nil {
			return nil, schemaErrorf(ReasonMissingField,
				"attribute at index %d of type '%s' from object at index %d is missing a 'value' field",
				attributeIndex, *a.Type, objectIndex)
		}
		pos := schema.IndexOf(*a.Type)
		if pos == -1 {
			return nil, schemaErrorf(ReasonUnknownAttribute,
				"unknown attribute type '%s' in object at index %d", *a.Type, objectIndex)
		}
		if filled[pos] {
			return nil, schemaErrorf(ReasonSchemaMismatch,
				"object at index %d declares attribute type '%s' more than once", objectIndex, *a.Type)
		}
		row[pos] = *a.Value
		filled[pos] = true
	}

	return row, nil
}
