package anonymizer

import (
	"fmt"
)

// Reconcile maps an engine outcome back onto the request's attribute names.
// A NotFound outcome yields the original values unchanged.
func Reconcile(outcome *Outcome, table *Table) (*Result, error) {
	if outcome == nil {
		return nil, engineError(fmt.Errorf("engine returned no outcome"))
	}
	if !outcome.OptimumFound {
		return &Result{Rows: tagRows(table.Schema, table.Rows), OptimumFound: false}, nil
	}

	if len(outcome.Rows) == 0 {
		return nil, engineError(fmt.Errorf("optimal outcome is missing its header row"))
	}
	body := outcome.Rows[1:]
	if len(body) != table.Len() {
		return nil, engineError(fmt.Errorf("engine returned %d rows, expected %d", len(body), table.Len()))
	}

	rows := make([]Row, 0, len(body))
	for i, r := range body {
		if len(r) != table.Schema.Len() {
			return nil, engineError(fmt.Errorf("engine row %d has %d values, expected %d", i, len(r), table.Schema.Len()))
		}
		rows = append(rows, Row(r))
	}

	return &Result{Rows: tagRows(table.Schema, rows), OptimumFound: true}, nil
}

func tagRows(schema Schema, rows []Row) [][]Entry {
	out := make([][]Entry, 0, len(rows))
	for _, r := range rows {
		entries := make([]Entry, len(r))
		for i, v := range r {
			entries[i] = Entry{Type: schema.Name(i), Value: v}
		}
		out = append(out, entries)
	}
	return out
}
