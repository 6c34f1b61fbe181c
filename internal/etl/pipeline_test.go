package etl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/raaihank/pet-gateway/internal/anonymizer"
	"github.com/raaihank/pet-gateway/internal/contextstore"
)

type recorderFunc func(ctx context.Context, objects []anonymizer.ObjectData) (*contextstore.RecordResult, error)

func (f recorderFunc) Record(ctx context.Context, objects []anonymizer.ObjectData) (*contextstore.RecordResult, error) {
	return f(ctx, objects)
}

// collectingRecorder keeps every batch it receives
type collectingRecorder struct {
	batches [][]anonymizer.ObjectData
}

func (r *collectingRecorder) Record(ctx context.Context, objects []anonymizer.ObjectData) (*contextstore.RecordResult, error) {
	r.batches = append(r.batches, objects)
	return &contextstore.RecordResult{Inserted: int64(len(objects))}, nil
}

func (r *collectingRecorder) objects() []anonymizer.ObjectData {
	var all []anonymizer.ObjectData
	for _, b := range r.batches {
		all = append(all, b...)
	}
	return all
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestDetectFileFormat(t *testing.T) {
	tests := map[string]FileFormat{
		"people.csv":     FormatCSV,
		"people.parquet": FormatParquet,
		"people.json":    FormatJSON,
		"people.jsonl":   FormatJSON,
		"people":         FormatCSV,
	}
	for name, want := range tests {
		if got := DetectFileFormat(name); got != want {
			t.Errorf("DetectFileFormat(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestPipeline_ProcessFile(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("CSVGroupsRecordsByRow", func(t *testing.T) {
		path := writeFile(t, "context.csv", `row,attribute,value,hierarchy
1,Age,30,30|3*|*
1,Zip,30001,30001|300**
2,Age,40,40|4*|*
2,Zip,30002,
1,Zip,99999,
,Age,50,
3,Age,60,61|6*
`)
		recorder := &collectingRecorder{}
		result, err := NewPipeline(recorder, &Config{BatchSize: 10, ValidateData: true}, logger).ProcessFile(ctx, path)
		if err != nil {
			t.Fatalf("ProcessFile failed: %v", err)
		}

		if result.TotalRecords != 7 {
			t.Errorf("Expected 7 records, got %d", result.TotalRecords)
		}
		// duplicate Zip for row 1, empty row id, chain not starting with value
		if result.InvalidRecords != 3 {
			t.Errorf("Expected 3 invalid records, got %d", result.InvalidRecords)
		}

		objects := recorder.objects()
		if len(objects) != 2 {
			t.Fatalf("Expected 2 objects, got %d", len(objects))
		}
		first := objects[0]
		if len(first.Values) != 2 || *first.Values[1].Value != "30001" {
			t.Errorf("Unexpected first object: %+v", first)
		}
		if len(first.Hierarchies) != 2 || len(first.Hierarchies[0].Values) != 3 {
			t.Errorf("Unexpected first object hierarchies: %+v", first.Hierarchies)
		}
		// row 2 has a chain for Age only
		if len(objects[1].Hierarchies) != 0 {
			t.Errorf("Expected partial hierarchies dropped on second object, got %d", len(objects[1].Hierarchies))
		}
		if result.PartialHierarchies != 1 {
			t.Errorf("Expected 1 row with partial hierarchies, got %d", result.PartialHierarchies)
		}
		if result.Inserted != 2 {
			t.Errorf("Expected 2 inserted, got %d", result.Inserted)
		}
	})

	t.Run("CSVPartialHierarchiesAreDropped", func(t *testing.T) {
		path := writeFile(t, "context.csv", `row,attribute,value,hierarchy
1,Age,50,50|5*
1,Zip,300,
`)
		recorder := &collectingRecorder{}
		result, err := NewPipeline(recorder, &Config{ValidateData: true}, logger).ProcessFile(ctx, path)
		if err != nil {
			t.Fatalf("ProcessFile failed: %v", err)
		}

		objects := recorder.objects()
		if len(objects) != 1 {
			t.Fatalf("Expected 1 object, got %d", len(objects))
		}
		if len(objects[0].Values) != 2 || len(objects[0].Hierarchies) != 0 {
			t.Errorf("Expected 2 values and no hierarchies, got %+v", objects[0])
		}
		if result.PartialHierarchies != 1 {
			t.Errorf("Expected 1 row with partial hierarchies, got %d", result.PartialHierarchies)
		}

		schema, err := anonymizer.InferSchema(objects)
		if err != nil {
			t.Fatalf("InferSchema failed: %v", err)
		}
		if _, err := anonymizer.AssembleTable(schema, objects); err != nil {
			t.Errorf("Expected imported object to assemble, got %v", err)
		}
	})

	t.Run("CSVRequiresHeaderColumns", func(t *testing.T) {
		path := writeFile(t, "context.csv", "id,name\n1,Age\n")
		if _, err := NewPipeline(&collectingRecorder{}, &Config{}, logger).ProcessFile(ctx, path); err == nil {
			t.Error("Expected error for missing columns")
		}
	})

	t.Run("JSONLinesInBatches", func(t *testing.T) {
		path := writeFile(t, "context.jsonl", `{"row":"a","attribute":"Age","value":"30"}
{"row":"b","attribute":"Age","value":"40"}
{"row":"c","attribute":"Age","value":"50"}
`)
		recorder := &collectingRecorder{}
		result, err := NewPipeline(recorder, &Config{BatchSize: 2}, logger).ProcessFile(ctx, path)
		if err != nil {
			t.Fatalf("ProcessFile failed: %v", err)
		}
		if len(recorder.batches) != 2 {
			t.Errorf("Expected 2 batches, got %d", len(recorder.batches))
		}
		if result.Objects != 3 {
			t.Errorf("Expected 3 objects, got %d", result.Objects)
		}
	})

	t.Run("MalformedJSONStopsImport", func(t *testing.T) {
		path := writeFile(t, "context.json", `{"row":"a","attribute":"Age","value":"30"}
{not json
`)
		if _, err := NewPipeline(&collectingRecorder{}, &Config{}, logger).ProcessFile(ctx, path); err == nil {
			t.Error("Expected error for malformed JSON")
		}
	})

	t.Run("Parquet", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "context.parquet")
		records := []DataRecord{
			{Row: "1", Attribute: "Age", Value: "30", Hierarchy: "30|3*"},
			{Row: "1", Attribute: "Zip", Value: "30001"},
			{Row: "2", Attribute: "Age", Value: "40", Hierarchy: "40|4*"},
			{Row: "2", Attribute: "Zip", Value: "30002"},
		}
		if err := parquet.WriteFile(path, records); err != nil {
			t.Fatalf("Failed to write parquet file: %v", err)
		}

		recorder := &collectingRecorder{}
		result, err := NewPipeline(recorder, &Config{ValidateData: true}, logger).ProcessFile(ctx, path)
		if err != nil {
			t.Fatalf("ProcessFile failed: %v", err)
		}
		if result.TotalRecords != 4 || result.Objects != 2 {
			t.Errorf("Unexpected result: %+v", result)
		}
	})

	t.Run("DryRunSkipsRecorder", func(t *testing.T) {
		path := writeFile(t, "context.csv", "row,attribute,value\n1,Age,30\n")
		recorder := recorderFunc(func(ctx context.Context, objects []anonymizer.ObjectData) (*contextstore.RecordResult, error) {
			t.Error("Recorder should not be called in dry run")
			return nil, nil
		})
		if _, err := NewPipeline(recorder, &Config{DryRun: true}, logger).ProcessFile(ctx, path); err != nil {
			t.Fatalf("ProcessFile failed: %v", err)
		}
	})

	t.Run("RecorderErrorsAreReturned", func(t *testing.T) {
		path := writeFile(t, "context.csv", "row,attribute,value\n1,Age,30\n")
		recorder := recorderFunc(func(ctx context.Context, objects []anonymizer.ObjectData) (*contextstore.RecordResult, error) {
			return nil, errors.New("database unavailable")
		})
		if _, err := NewPipeline(recorder, &Config{}, logger).ProcessFile(ctx, path); err == nil {
			t.Error("Expected recorder error")
		}
	})
}
