package etl

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/raaihank/pet-gateway/internal/anonymizer"
	"github.com/raaihank/pet-gateway/internal/contextstore"
)

// Recorder stores grouped objects
type Recorder interface {
	Record(ctx context.Context, objects []anonymizer.ObjectData) (*contextstore.RecordResult, error)
}

// Pipeline imports long-format attribute records into the context store
type Pipeline struct {
	recorder Recorder
	config   *Config
	logger   *zap.Logger
}

// NewPipeline creates a new import pipeline
func NewPipeline(recorder Recorder, config *Config, logger *zap.Logger) *Pipeline {
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}
	if config.ProgressReport <= 0 {
		config.ProgressReport = 10000
	}
	return &Pipeline{
		recorder: recorder,
		config:   config,
		logger:   logger,
	}
}

// ProcessFile imports a dataset file (CSV, Parquet, or JSON lines)
func (p *Pipeline) ProcessFile(ctx context.Context, filePath string) (*ProcessingResult, error) {
	start := time.Now()
	result := &ProcessingResult{}

	format := DetectFileFormat(filePath)
	p.logger.Info("Starting context import",
		zap.String("file", filePath),
		zap.String("format", string(format)),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Bool("dry_run", p.config.DryRun))

	file, err := os.Open(filePath)
	if err != nil {
		return result, fmt.Errorf("failed to open %s file: %w", format, err)
	}
	defer file.Close()

	var next func() (*DataRecord, error)
	switch format {
	case FormatCSV:
		next, err = csvRecords(file)
	case FormatParquet:
		next, err = parquetRecords(file)
	case FormatJSON:
		next, err = jsonRecords(file)
	default:
		err = fmt.Errorf("unsupported file format: %s", format)
	}
	if err != nil {
		return result, err
	}

	objects, err := p.group(ctx, next, result)
	if err != nil {
		return result, err
	}
	result.Objects = int64(len(objects))

	if err := p.recordBatches(ctx, objects, result); err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	p.logger.Info("Context import completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("invalid_records", result.InvalidRecords),
		zap.Int64("partial_hierarchies", result.PartialHierarchies),
		zap.Int64("objects", result.Objects),
		zap.Int64("inserted", result.Inserted),
		zap.Int64("duplicates", result.Duplicates),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("database_time", result.DatabaseTime))

	return result, nil
}

// group collects records into one object per row id, in order of first appearance
func (p *Pipeline) group(ctx context.Context, next func() (*DataRecord, error), result *ProcessingResult) ([]anonymizer.ObjectData, error) {
	var order []string
	rows := make(map[string]*anonymizer.ObjectData)
	attributes := make(map[string]map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := next()
		if err == io.EOF {
			break
		}
		var skip *recordError
		if errors.As(err, &skip) {
			p.logger.Warn("Failed to read record", zap.Error(err))
			result.InvalidRecords++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read records: %w", err)
		}
		result.TotalRecords++

		chain, ok := p.validateRecord(record)
		if !ok {
			result.InvalidRecords++
			continue
		}

		o, exists := rows[record.Row]
		if !exists {
			o = &anonymizer.ObjectData{}
			rows[record.Row] = o
			attributes[record.Row] = make(map[string]struct{})
			order = append(order, record.Row)
		}
		if _, dup := attributes[record.Row][record.Attribute]; dup {
			p.logger.Debug("Invalid record: duplicate attribute in row",
				zap.String("row", record.Row), zap.String("attribute", record.Attribute))
			result.InvalidRecords++
			continue
		}
		attributes[record.Row][record.Attribute] = struct{}{}

		o.Values = append(o.Values, anonymizer.NewAttribute(record.Attribute, record.Value))
		if len(chain) > 0 {
			o.Hierarchies = append(o.Hierarchies, anonymizer.HierarchyEntry{Type: record.Attribute, Values: chain})
		}

		if result.TotalRecords%int64(p.config.ProgressReport) == 0 {
			p.logger.Info("Import progress",
				zap.Int64("records_read", result.TotalRecords),
				zap.Int("rows", len(order)))
		}
	}

	objects := make([]anonymizer.ObjectData, 0, len(order))
	for _, id := range order {
		o := rows[id]
		// Hierarchies are all-or-nothing per row
		if len(o.Hierarchies) > 0 && len(o.Hierarchies) != len(o.Values) {
			p.logger.Debug("Dropping partial hierarchies of row",
				zap.String("row", id),
				zap.Int("values", len(o.Values)),
				zap.Int("hierarchies", len(o.Hierarchies)))
			o.Hierarchies = nil
			result.PartialHierarchies++
		}
		objects = append(objects, *o)
	}
	return objects, nil
}

func (p *Pipeline) recordBatches(ctx context.Context, objects []anonymizer.ObjectData, result *ProcessingResult) error {
	if p.config.DryRun {
		p.logger.Info("Dry run, skipping database writes", zap.Int("objects", len(objects)))
		return nil
	}

	for i := 0; i < len(objects); i += p.config.BatchSize {
		end := i + p.config.BatchSize
		if end > len(objects) {
			end = len(objects)
		}

		dbStart := time.Now()
		batchResult, err := p.recorder.Record(ctx, objects[i:end])
		result.DatabaseTime += time.Since(dbStart)
		if err != nil {
			return fmt.Errorf("failed to record batch at offset %d: %w", i, err)
		}

		result.Inserted += batchResult.Inserted
		result.Duplicates += batchResult.Duplicates
		result.Skipped += batchResult.Skipped
	}
	return nil
}

// validateRecord checks required fields and splits the hierarchy chain
func (p *Pipeline) validateRecord(record *DataRecord) ([]string, bool) {
	record.Row = strings.TrimSpace(record.Row)
	record.Attribute = strings.TrimSpace(record.Attribute)

	var chain []string
	if record.Hierarchy != "" {
		chain = strings.Split(record.Hierarchy, HierarchySeparator)
	}

	if !p.config.ValidateData {
		return chain, true
	}

	if record.Row == "" {
		p.logger.Debug("Invalid record: empty row")
		return nil, false
	}
	if record.Attribute == "" {
		p.logger.Debug("Invalid record: empty attribute", zap.String("row", record.Row))
		return nil, false
	}
	if len(chain) > 0 && chain[0] != record.Value {
		p.logger.Debug("Invalid record: hierarchy does not start with value",
			zap.String("row", record.Row),
			zap.String("attribute", record.Attribute))
		return nil, false
	}

	return chain, true
}

// recordError marks a single unreadable record; reading can continue past it
type recordError struct {
	err error
}

func (e *recordError) Error() string { return e.err.Error() }

func (e *recordError) Unwrap() error { return e.err }

func csvRecords(r io.Reader) (func() (*DataRecord, error), error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"row", "attribute", "value"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("CSV header is missing column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	return func() (*DataRecord, error) {
		record, err := reader.Read()
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, &recordError{err: err}
		}
		if err != nil {
			return nil, err
		}
		return &DataRecord{
			Row:       field(record, "row"),
			Attribute: field(record, "attribute"),
			Value:     field(record, "value"),
			Hierarchy: field(record, "hierarchy"),
		}, nil
	}, nil
}

func parquetRecords(file *os.File) (func() (*DataRecord, error), error) {
	reader := parquet.NewReader(file)
	return func() (*DataRecord, error) {
		var record DataRecord
		if err := reader.Read(&record); err != nil {
			if err == io.EOF {
				reader.Close()
			}
			return nil, err
		}
		return &record, nil
	}, nil
}

func jsonRecords(r io.Reader) (func() (*DataRecord, error), error) {
	decoder := json.NewDecoder(r)
	return func() (*DataRecord, error) {
		var record DataRecord
		if err := decoder.Decode(&record); err != nil {
			return nil, err
		}
		return &record, nil
	}, nil
}
