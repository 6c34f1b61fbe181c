package anonymizer

import (
	"testing"
)

func TestParseScheme(t *testing.T) {
	cases := map[string]Scheme{
		"k-anonymity":              SchemeKAnonymity,
		"K-Anonymity":              SchemeKAnonymity,
		"L-DIVERSITY/DISTINCT":     SchemeLDiversityDistinct,
		"l-diversity/entropy":      SchemeLDiversityEntropy,
		"l-diversity/recursive":    SchemeLDiversityRecursive,
		"t-closeness/hierarchical": SchemeTClosenessHierarchical,
		"T-Closeness/Ordered":      SchemeTClosenessOrdered,
		"k-map":                    SchemeKMap,
	}
	for id, want := range cases {
		got, ok := ParseScheme(id)
		if !ok || got != want {
			t.Errorf("ParseScheme(%q) = %v, %v; want %v", id, got, ok, want)
		}
	}

	if _, ok := ParseScheme("delta-presence"); ok {
		t.Error("unknown scheme should not parse")
	}
}

func TestConstraintCompiler(t *testing.T) {
	objects := []ObjectData{
		withHierarchies(object("Age", "30", "Disease", "flu"),
			HierarchyEntry{Type: "Age", Values: []string{"30", "3*"}},
			HierarchyEntry{Type: "Disease", Values: []string{"flu", "respiratory"}}),
		object("Age", "40", "Disease", "cold"),
		object("Age", "35", "Disease", "flu"),
	}
	schema := NewSchema("Age", "Disease")
	table, err := AssembleTable(schema, objects)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hierarchies, err := BuildObjectHierarchies(objects[:1], ConflictLastWriteWins)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	compile := func(pets ...Pet) ([]Constraint, error) {
		constraints, _, err := NewConstraintCompiler(table, objects, hierarchies).Compile(pets)
		return constraints, err
	}

	t.Run("ComposesAllSchemes", func(t *testing.T) {
		constraints, err := compile(
			kAnonymity(2),
			Pet{Scheme: "l-diversity/distinct", Metadata: PetMetadata{Attribute: "Disease", L: intPtr(2)}},
			Pet{Scheme: "l-diversity/entropy", Metadata: PetMetadata{Attribute: "Disease", L: intPtr(2)}},
			Pet{Scheme: "l-diversity/recursive", Metadata: PetMetadata{Attribute: "Disease", L: intPtr(2), C: floatPtr(3)}},
			Pet{Scheme: "t-closeness/hierarchical", Metadata: PetMetadata{Attribute: "Disease", T: floatPtr(0.2)}},
			Pet{Scheme: "t-closeness/ordered", Metadata: PetMetadata{Attribute: "Age", T: floatPtr(0.2)}},
			Pet{Scheme: "k-map", Metadata: PetMetadata{K: intPtr(2)}},
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(constraints) != 7 {
			t.Fatalf("expected 7 constraints, got %d", len(constraints))
		}

		rec, ok := constraints[3].(RecursiveCLDiversity)
		if !ok || rec.C != 3 || rec.L != 2 || rec.Attribute != "Disease" {
			t.Errorf("unexpected recursive constraint: %+v", constraints[3])
		}
		htc, ok := constraints[4].(HierarchicalTCloseness)
		if !ok || htc.Hierarchy == nil {
			t.Errorf("hierarchical t-closeness should carry the attribute hierarchy: %+v", constraints[4])
		}
	})

	t.Run("LExceedsRowCount", func(t *testing.T) {
		_, err := compile(Pet{Scheme: "l-diversity/entropy", Metadata: PetMetadata{Attribute: "Disease", L: intPtr(4)}})
		if !IsKind(err, KindBusinessRule) {
			t.Fatalf("expected business rule error, got %v", err)
		}
	})

	t.Run("UnknownAttribute", func(t *testing.T) {
		_, err := compile(Pet{Scheme: "l-diversity/distinct", Metadata: PetMetadata{Attribute: "Salary", L: intPtr(2)}})
		if !IsKind(err, KindSchema) {
			t.Fatalf("expected schema error, got %v", err)
		}
	})

	t.Run("HierarchicalTClosenessWithoutHierarchy", func(t *testing.T) {
		noDisease, err := BuildObjectHierarchies([]ObjectData{
			withHierarchies(object("Age", "30"), HierarchyEntry{Type: "Age", Values: []string{"30", "3*"}}),
		}, ConflictLastWriteWins)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, _, err = NewConstraintCompiler(table, objects, noDisease).Compile([]Pet{
			{Scheme: "t-closeness/hierarchical", Metadata: PetMetadata{Attribute: "Disease", T: floatPtr(0.2)}},
		})
		if !IsKind(err, KindValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("OrderedTClosenessNeedsNoHierarchy", func(t *testing.T) {
		_, _, err := NewConstraintCompiler(table, objects, Hierarchies{}).Compile([]Pet{
			{Scheme: "t-closeness/ordered", Metadata: PetMetadata{Attribute: "Disease", T: floatPtr(0.2)}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("MissingParameters", func(t *testing.T) {
		for _, p := range []Pet{
			{Scheme: "k-anonymity"},
			{Scheme: "l-diversity/distinct", Metadata: PetMetadata{Attribute: "Disease"}},
			{Scheme: "l-diversity/recursive", Metadata: PetMetadata{Attribute: "Disease", L: intPtr(2)}},
			{Scheme: "t-closeness/ordered", Metadata: PetMetadata{Attribute: "Age"}},
			{Scheme: "t-closeness/ordered", Metadata: PetMetadata{T: floatPtr(0.1)}},
		} {
			if _, err := compile(p); !IsKind(err, KindValidation) {
				t.Errorf("%s: expected validation error, got %v", p.Scheme, err)
			}
		}
	})

	t.Run("UnknownSchemesAreReported", func(t *testing.T) {
		constraints, ignored, err := NewConstraintCompiler(table, objects, hierarchies).Compile([]Pet{
			{Scheme: "delta-presence"},
			kAnonymity(2),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(constraints) != 1 || len(ignored) != 1 {
			t.Errorf("expected 1 constraint and 1 ignored scheme, got %d and %v", len(constraints), ignored)
		}
	})
}

func TestKMapReferencePopulation(t *testing.T) {
	main := []ObjectData{
		object("Age", "30", "Zip", "30001"),
		object("Zip", "30002", "Age", "40"),
		object("Age", "35", "Zip", "30003"),
	}
	context := []ObjectData{
		object("Zip", "40001", "Age", "50"),
		object("Age", "60", "Zip", "40002"),
	}
	schema := NewSchema("Age", "Zip")
	table, err := AssembleTable(schema, main)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("UnionsMainAndContextRows", func(t *testing.T) {
		constraints, _, err := NewConstraintCompiler(table, main, Hierarchies{}).Compile([]Pet{
			{Scheme: "k-map", Metadata: PetMetadata{K: intPtr(2), Context: [][]ObjectData{context}}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		kmap := constraints[0].(KMap)
		population := kmap.Population
		if population.Len() != 5 {
			t.Fatalf("expected 5 rows, got %d", population.Len())
		}
		names := population.Schema.Names()
		if names[0] != "Age" || names[1] != "Zip" {
			t.Errorf("population schema differs from main table: %v", names)
		}
		if population.Rows[3][0] != "50" || population.Rows[3][1] != "40001" {
			t.Errorf("context row not schema ordered: %v", population.Rows[3])
		}
	})

	t.Run("KBoundedByMainTable", func(t *testing.T) {
		_, _, err := NewConstraintCompiler(table, main, Hierarchies{}).Compile([]Pet{
			{Scheme: "k-map", Metadata: PetMetadata{K: intPtr(4), Context: [][]ObjectData{context}}},
		})
		if !IsKind(err, KindBusinessRule) {
			t.Fatalf("expected business rule error, got %v", err)
		}
	})

	t.Run("ContextRowsAreSchemaChecked", func(t *testing.T) {
		_, _, err := NewConstraintCompiler(table, main, Hierarchies{}).Compile([]Pet{
			{Scheme: "k-map", Metadata: PetMetadata{K: intPtr(2), Context: [][]ObjectData{{object("Age", "50")}}}},
		})
		if !IsKind(err, KindSchema) {
			t.Fatalf("expected schema error, got %v", err)
		}
	})

	t.Run("PopulationsAreNotShared", func(t *testing.T) {
		constraints, _, err := NewConstraintCompiler(table, main, Hierarchies{}).Compile([]Pet{
			{Scheme: "k-map", Metadata: PetMetadata{K: intPtr(2)}},
			{Scheme: "k-map", Metadata: PetMetadata{K: intPtr(2), Context: [][]ObjectData{context}}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		first := constraints[0].(KMap).Population
		second := constraints[1].(KMap).Population
		if first == second || first.Len() != 3 || second.Len() != 5 {
			t.Errorf("expected independent populations of 3 and 5 rows, got %d and %d", first.Len(), second.Len())
		}
	})
}
