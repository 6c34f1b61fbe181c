package anonymizer

import (
	"errors"
	"strings"
	"testing"
)

func TestAssembleTable(t *testing.T) {
	schema := NewSchema("Age", "Zip")

	t.Run("PlacesValuesBySchemaPosition", func(t *testing.T) {
		table, err := AssembleTable(schema, []ObjectData{
			object("Zip", "30001", "Age", "30"),
			object("Age", "40", "Zip", "30002"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if table.Len() != 2 {
			t.Fatalf("expected 2 rows, got %d", table.Len())
		}
		if table.Rows[0][0] != "30" || table.Rows[0][1] != "30001" {
			t.Errorf("unexpected first row: %v", table.Rows[0])
		}
		if table.Rows[1][0] != "40" || table.Rows[1][1] != "30002" {
			t.Errorf("unexpected second row: %v", table.Rows[1])
		}
	})

	failures := []struct {
		name    string
		objects []ObjectData
		reason  Reason
		message string
	}{
		{
			name:    "TooManyAttributes",
			objects: []ObjectData{object("Age", "30", "Zip", "1", "Sex", "F")},
			reason:  ReasonSchemaMismatch,
			message: "object at index 0",
		},
		{
			name: "HierarchyCountMismatch",
			objects: []ObjectData{withHierarchies(object("Age", "30", "Zip", "1"),
				HierarchyEntry{Type: "Age", Values: []string{"30", "*"}})},
			reason:  ReasonSchemaMismatch,
			message: "attribute/hierarchies count",
		},
		{
			name:    "UnknownAttribute",
			objects: []ObjectData{object("Age", "30", "City", "Murcia")},
			reason:  ReasonUnknownAttribute,
			message: "'City'",
		},
		{
			name:    "NullType",
			objects: []ObjectData{{Values: []Attribute{NewAttribute("Age", "30"), {Value: strPtr("1")}}}},
			reason:  ReasonMissingField,
			message: "'type'",
		},
		{
			name:    "NullValue",
			objects: []ObjectData{{Values: []Attribute{NewAttribute("Age", "30"), {Type: strPtr("Zip")}}}},
			reason:  ReasonMissingField,
			message: "'value'",
		},
		{
			name:    "DuplicateAttribute",
			objects: []ObjectData{object("Age", "30", "Age", "31")},
			reason:  ReasonSchemaMismatch,
			message: "more than once",
		},
	}

	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			_, err := AssembleTable(schema, tc.objects)
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if e.Kind != KindSchema || e.Reason != tc.reason {
				t.Errorf("expected schema/%s, got %s/%s", tc.reason, e.Kind, e.Reason)
			}
			if !strings.Contains(e.Message, tc.message) {
				t.Errorf("expected message to contain %q, got %q", tc.message, e.Message)
			}
		})
	}

	t.Run("FailureInLaterRecordCitesItsIndex", func(t *testing.T) {
		_, err := AssembleTable(schema, []ObjectData{
			object("Age", "30", "Zip", "1"),
			object("Age", "40", "Zip", "2"),
			object("Age", "50"),
		})
		if err == nil || !strings.Contains(err.Error(), "object at index 2") {
			t.Fatalf("expected error citing object 2, got %v", err)
		}
	})
}

func TestInferSchema(t *testing.T) {
	t.Run("UsesFirstObjectOrder", func(t *testing.T) {
		schema, err := InferSchema([]ObjectData{
			object("Zip", "1", "Age", "30"),
			object("Age", "40", "Zip", "2"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		names := schema.Names()
		if len(names) != 2 || names[0] != "Zip" || names[1] != "Age" {
			t.Errorf("unexpected schema: %v", names)
		}
	})

	t.Run("KeyIgnoresOrder", func(t *testing.T) {
		if NewSchema("Age", "Zip").Key() != NewSchema("Zip", "Age").Key() {
			t.Error("keys of equal attribute sets should match")
		}
	})
}

func strPtr(s string) *string { return &s }
