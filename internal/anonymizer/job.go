package anonymizer

import (
	"context"
)

// Job is the complete description handed to the engine. It is built once per
// request and never mutated afterwards.
type Job struct {
	Schema      Schema
	Table       *Table
	Hierarchies Hierarchies
	Constraints []Constraint
}

// Outcome is the engine's answer. When OptimumFound is true, Rows holds the
// generalized table with the engine's header as its first row.
type Outcome struct {
	OptimumFound bool
	Rows         [][]string
}

// Optimal builds an outcome carrying a generalized table (header included)
func Optimal(rows [][]string) *Outcome {
	return &Outcome{OptimumFound: true, Rows: rows}
}

// NotFound builds an outcome without a usable table
func NotFound() *Outcome {
	return &Outcome{}
}

// Engine searches for an optimal generalization. Solve blocks until the
// search terminates or ctx is done.
type Engine interface {
	Solve(ctx context.Context, job *Job) (*Outcome, error)
}

// EngineFunc adapts a function to Engine
type EngineFunc func(ctx context.Context, job *Job) (*Outcome, error)

// Solve calls f
func (f EngineFunc) Solve(ctx context.Context, job *Job) (*Outcome, error) {
	return f(ctx, job)
}

// checkCoverage enforces that every value of an attribute with a hierarchy
// has a registered chain
func checkCoverage(table *Table, hierarchies Hierarchies) error {
	for i, name := range table.Schema.names {
		h := hierarchies.Get(name)
		if h == nil {
			continue
		}
		for rowIndex, r := range table.Rows {
			if _, ok := h.Chain(r[i]); !ok {
				return validationErrorf("value of attribute '%s' in row %d has no hierarchy", name, rowIndex)
			}
		}
	}
	return nil
}
