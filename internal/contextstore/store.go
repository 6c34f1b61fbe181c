package contextstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/raaihank/pet-gateway/internal/anonymizer"
)

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS context_objects (
		id UUID PRIMARY KEY,
		hash TEXT NOT NULL UNIQUE,
		schema_key TEXT NOT NULL,
		object JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_context_objects_schema_key ON context_objects (schema_key);`

// Store persists previously seen objects so later k-map jobs can use them as
// part of their reference population
type Store struct {
	db     *sqlx.DB
	config *Config
	logger *zap.Logger
}

// Config contains database configuration
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	MaxRows         int           `yaml:"max_rows" mapstructure:"max_rows"`
	BatchSize       int           `yaml:"batch_size" mapstructure:"batch_size"`
}

// RecordResult summarizes one Record call
type RecordResult struct {
	Inserted   int64         `json:"inserted"`
	Duplicates int64         `json:"duplicates"`
	Skipped    int64         `json:"skipped"`
	Duration   time.Duration `json:"duration"`
}

// Stats describes the stored context
type Stats struct {
	TotalObjects int64 `json:"total_objects"`
	Schemas      int64 `json:"schemas"`
}

// NewStore connects to PostgreSQL and makes sure the table exists
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	store := NewStoreFromDB(db, config, logger)
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Context store initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_rows", config.MaxRows))

	return store, nil
}

// NewStoreFromDB wraps an existing connection without touching the schema
func NewStoreFromDB(db *sqlx.DB, config *Config, logger *zap.Logger) *Store {
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}
	return &Store{
		db:     db,
		config: config,
		logger: logger,
	}
}

func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create context table: %w", err)
	}
	return nil
}

// Record stores objects keyed by their content. Objects that are already
// stored are skipped, as are objects without a usable schema.
func (s *Store) Record(ctx context.Context, objects []anonymizer.ObjectData) (*RecordResult, error) {
	start := time.Now()
	result := &RecordResult{}

	type pending struct {
		hash      string
		schemaKey string
		document  []byte
	}
	rows := make([]pending, 0, len(objects))
	seen := make(map[string]struct{}, len(objects))

	for i, o := range objects {
		schema, err := anonymizer.InferSchema([]anonymizer.ObjectData{o})
		if err == nil {
			_, err = anonymizer.AssembleTable(schema, []anonymizer.ObjectData{o})
		}
		if err != nil || !complete(o) {
			s.logger.Debug("Skipping object without usable schema", zap.Int("index", i))
			result.Skipped++
			continue
		}

		hash := objectHash(schema, o)
		if _, dup := seen[hash]; dup {
			result.Duplicates++
			continue
		}
		seen[hash] = struct{}{}

		document, err := json.Marshal(o)
		if err != nil {
			return result, fmt.Errorf("failed to marshal object at index %d: %w", i, err)
		}
		rows = append(rows, pending{hash: hash, schemaKey: schema.Key(), document: document})
	}

	for i := 0; i < len(rows); i += s.config.BatchSize {
		end := i + s.config.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[i:end]

		valueStrings := make([]string, 0, len(batch))
		valueArgs := make([]interface{}, 0, len(batch)*4)
		for j, r := range batch {
			valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d)", j*4+1, j*4+2, j*4+3, j*4+4))
			valueArgs = append(valueArgs, uuid.New().String(), r.hash, r.schemaKey, string(r.document))
		}

		query := fmt.Sprintf(`
		INSERT INTO context_objects (id, hash, schema_key, object)
		VALUES %s
		ON CONFLICT (hash) DO NOTHING`,
			strings.Join(valueStrings, ","))

		res, err := s.db.ExecContext(ctx, query, valueArgs...)
		if err != nil {
			s.logger.Error("Context batch insert failed", zap.Error(err), zap.Int("batch_size", len(batch)))
			return result, fmt.Errorf("batch insert failed: %w", err)
		}

		inserted, err := res.RowsAffected()
		if err != nil {
			s.logger.Warn("Could not get rows affected", zap.Error(err))
			inserted = int64(len(batch))
		}
		result.Inserted += inserted
		result.Duplicates += int64(len(batch)) - inserted
	}

	result.Duration = time.Since(start)
	s.logger.Debug("Context recorded",
		zap.Int64("inserted", result.Inserted),
		zap.Int64("duplicates", result.Duplicates),
		zap.Int64("skipped", result.Skipped),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// Lookup returns the most recent stored objects sharing schema, bounded by
// the configured row limit
func (s *Store) Lookup(ctx context.Context, schema anonymizer.Schema) ([]anonymizer.ObjectData, error) {
	return s.LookupN(ctx, schema, s.config.MaxRows)
}

// LookupN returns at most limit stored objects sharing schema
func (s *Store) LookupN(ctx context.Context, schema anonymizer.Schema, limit int) ([]anonymizer.ObjectData, error) {
	if limit <= 0 {
		return nil, nil
	}

	var documents []string
	query := `SELECT object FROM context_objects WHERE schema_key = $1 ORDER BY created_at DESC LIMIT $2`
	if err := s.db.SelectContext(ctx, &documents, query, schema.Key(), limit); err != nil {
		return nil, fmt.Errorf("context lookup failed: %w", err)
	}

	objects := make([]anonymizer.ObjectData, 0, len(documents))
	for _, document := range documents {
		var o anonymizer.ObjectData
		if err := json.Unmarshal([]byte(document), &o); err != nil {
			s.logger.Warn("Skipping undecodable context object", zap.Error(err))
			continue
		}
		objects = append(objects, o)
	}

	return objects, nil
}

// GetStats returns stored object counts
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	query := `SELECT COUNT(*), COUNT(DISTINCT schema_key) FROM context_objects`
	if err := s.db.QueryRowContext(ctx, query).Scan(&stats.TotalObjects, &stats.Schemas); err != nil {
		return nil, fmt.Errorf("failed to get context stats: %w", err)
	}
	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func complete(o anonymizer.ObjectData) bool {
	for _, a := range o.Values {
		if a.Value == nil {
			return false
		}
	}
	return true
}

// objectHash identifies an object by its values in sorted attribute order, so
// the same row recorded with a different attribute order is one row
func objectHash(schema anonymizer.Schema, o anonymizer.ObjectData) string {
	names := schema.Names()
	sort.Strings(names)

	values := make(map[string]string, len(o.Values))
	for _, a := range o.Values {
		values[*a.Type] = *a.Value
	}

	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(values[name]))
		h.Write([]byte{0x1f})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// maskDatabaseURL masks the password in a database URL for logging
func maskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at == -1 {
		return url
	}
	userPart := url[:at]
	colon := strings.LastIndex(userPart, ":")
	if colon == -1 || strings.HasPrefix(userPart[colon:], "://") {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
