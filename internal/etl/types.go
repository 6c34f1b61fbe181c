package etl

import (
	"strings"
	"time"
)

// HierarchySeparator splits the generalization chain column of a record
const HierarchySeparator = "|"

// DataRecord is one attribute of one row in long format
type DataRecord struct {
	Row       string `csv:"row" parquet:"row" json:"row"`
	Attribute string `csv:"attribute" parquet:"attribute" json:"attribute"`
	Value     string `csv:"value" parquet:"value" json:"value"`
	Hierarchy string `csv:"hierarchy" parquet:"hierarchy,optional" json:"hierarchy"`
}

// ProcessingResult represents the result of importing a dataset
type ProcessingResult struct {
	TotalRecords       int64         `json:"total_records"`
	InvalidRecords     int64         `json:"invalid_records"`
	PartialHierarchies int64         `json:"partial_hierarchies"`
	Objects            int64         `json:"objects"`
	Inserted           int64         `json:"inserted"`
	Duplicates         int64         `json:"duplicates"`
	Skipped            int64         `json:"skipped"`
	Duration           time.Duration `json:"duration"`
	DatabaseTime       time.Duration `json:"database_time"`
	Errors             []string      `json:"errors,omitempty"`
}

// Config contains import pipeline configuration
type Config struct {
	BatchSize      int  `yaml:"batch_size" mapstructure:"batch_size"`           // 500
	ValidateData   bool `yaml:"validate_data" mapstructure:"validate_data"`     // true
	DryRun         bool `yaml:"dry_run" mapstructure:"dry_run"`                 // false
	ProgressReport int  `yaml:"progress_report" mapstructure:"progress_report"` // 10000
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch {
	case strings.HasSuffix(filename, ".parquet"):
		return FormatParquet
	case strings.HasSuffix(filename, ".json"), strings.HasSuffix(filename, ".jsonl"):
		return FormatJSON
	default:
		return FormatCSV
	}
}
