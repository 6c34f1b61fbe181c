package engine

import (
	"fmt"

	"github.com/raaihank/pet-gateway/internal/anonymizer"
)

// wireJob is the JSON document sent to the engine
type wireJob struct {
	Attributes  []string              `json:"attributes"`
	Rows        [][]string            `json:"rows"`
	Hierarchies map[string][][]string `json:"hierarchies"`
	Constraints []wireConstraint      `json:"constraints"`
}

// wireConstraint carries every parameter a privacy model may need; each
// scheme populates only its own fields
type wireConstraint struct {
	Scheme     string     `json:"scheme"`
	K          int        `json:"k,omitempty"`
	Attribute  string     `json:"attribute,omitempty"`
	L          int        `json:"l,omitempty"`
	C          float64    `json:"c,omitempty"`
	T          *float64   `json:"t,omitempty"`
	Hierarchy  [][]string `json:"hierarchy,omitempty"`
	Population [][]string `json:"population,omitempty"`
}

// wireOutcome is the engine's JSON answer; Rows[0] is the header
type wireOutcome struct {
	OptimumFound bool       `json:"optimum_found"`
	Rows         [][]string `json:"rows"`
}

func encodeJob(job *anonymizer.Job) (*wireJob, error) {
	w := &wireJob{
		Attributes:  job.Schema.Names(),
		Rows:        tableRows(job.Table),
		Hierarchies: make(map[string][][]string, len(job.Hierarchies)),
		Constraints: make([]wireConstraint, 0, len(job.Constraints)),
	}

	for name, h := range job.Hierarchies {
		w.Hierarchies[name] = h.Rows()
	}

	for _, c := range job.Constraints {
		wc, err := encodeConstraint(c)
		if err != nil {
			return nil, err
		}
		w.Constraints = append(w.Constraints, wc)
	}

	return w, nil
}

func encodeConstraint(c anonymizer.Constraint) (wireConstraint, error) {
	wc := wireConstraint{Scheme: c.Scheme().String()}

	switch v := c.(type) {
	case anonymizer.KAnonymity:
		wc.K = v.K
	case anonymizer.DistinctLDiversity:
		wc.Attribute, wc.L = v.Attribute, v.L
	case anonymizer.EntropyLDiversity:
		wc.Attribute, wc.L = v.Attribute, v.L
	case anonymizer.RecursiveCLDiversity:
		wc.Attribute, wc.L, wc.C = v.Attribute, v.L, v.C
	case anonymizer.HierarchicalTCloseness:
		t := v.T
		wc.Attribute, wc.T = v.Attribute, &t
		if v.Hierarchy != nil {
			wc.Hierarchy = v.Hierarchy.Rows()
		}
	case anonymizer.OrderedTCloseness:
		t := v.T
		wc.Attribute, wc.T = v.Attribute, &t
	case anonymizer.KMap:
		wc.K = v.K
		wc.Population = tableRows(v.Population)
	default:
		return wc, fmt.Errorf("unsupported constraint type %T", c)
	}

	return wc, nil
}

func tableRows(t *anonymizer.Table) [][]string {
	if t == nil {
		return nil
	}
	rows := make([][]string, 0, t.Len())
	for _, r := range t.Rows {
		rows = append(rows, []string(r))
	}
	return rows
}

func decodeOutcome(w *wireOutcome) *anonymizer.Outcome {
	if !w.OptimumFound {
		return anonymizer.NotFound()
	}
	return anonymizer.Optimal(w.Rows)
}
