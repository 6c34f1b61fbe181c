package contextstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/raaihank/pet-gateway/internal/anonymizer"
)

func newMockStore(t *testing.T, config *Config) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStoreFromDB(sqlx.NewDb(db, "postgres"), config, zap.NewNop()), mock
}

func object(pairs ...string) anonymizer.ObjectData {
	o := anonymizer.ObjectData{}
	for i := 0; i+1 < len(pairs); i += 2 {
		o.Values = append(o.Values, anonymizer.NewAttribute(pairs[i], pairs[i+1]))
	}
	return o
}

func TestStore_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("InsertsDistinctObjects", func(t *testing.T) {
		store, mock := newMockStore(t, &Config{BatchSize: 10})

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO context_objects (id, hash, schema_key, object)")).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := store.Record(ctx, []anonymizer.ObjectData{
			object("Age", "30", "Zip", "30001"),
			object("Age", "40", "Zip", "30002"),
			// same row as the first, attribute order swapped
			object("Zip", "30001", "Age", "30"),
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(1), result.Inserted)
		// one in-request duplicate plus one row already stored
		assert.Equal(t, int64(2), result.Duplicates)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SplitsIntoBatches", func(t *testing.T) {
		store, mock := newMockStore(t, &Config{BatchSize: 1})

		for i := 0; i < 2; i++ {
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO context_objects")).
				WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, 1))
		}

		result, err := store.Record(ctx, []anonymizer.ObjectData{
			object("Age", "30"),
			object("Age", "40"),
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(2), result.Inserted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SkipsIncompleteObjects", func(t *testing.T) {
		store, mock := newMockStore(t, &Config{BatchSize: 10})

		result, err := store.Record(ctx, []anonymizer.ObjectData{
			{},
			{Values: []anonymizer.Attribute{{Type: nil}}},
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(2), result.Skipped)
		assert.Equal(t, int64(0), result.Inserted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SkipsObjectsWithPartialHierarchies", func(t *testing.T) {
		store, mock := newMockStore(t, &Config{BatchSize: 10})

		partial := object("Age", "50", "Zip", "300")
		partial.Hierarchies = []anonymizer.HierarchyEntry{{Type: "Age", Values: []string{"50", "5*"}}}

		result, err := store.Record(ctx, []anonymizer.ObjectData{partial})
		assert.NoError(t, err)
		assert.Equal(t, int64(1), result.Skipped)
		assert.Equal(t, int64(0), result.Inserted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("PropagatesDatabaseErrors", func(t *testing.T) {
		store, mock := newMockStore(t, &Config{BatchSize: 10})

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO context_objects")).
			WillReturnError(errors.New("connection reset"))

		_, err := store.Record(ctx, []anonymizer.ObjectData{object("Age", "30")})
		assert.Error(t, err)
	})
}

func TestStore_Lookup(t *testing.T) {
	ctx := context.Background()
	schema := anonymizer.NewSchema("Zip", "Age")

	t.Run("ReturnsObjectsForSchema", func(t *testing.T) {
		store, mock := newMockStore(t, &Config{MaxRows: 50})

		rows := sqlmock.NewRows([]string{"object"}).
			AddRow(`{"values":[{"type":"Age","value":"30"},{"type":"Zip","value":"30001"}]}`).
			AddRow(`not json`).
			AddRow(`{"values":[{"type":"Zip","value":"30002"},{"type":"Age","value":"40"}]}`)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT object FROM context_objects WHERE schema_key = $1")).
			WithArgs(schema.Key(), 50).
			WillReturnRows(rows)

		objects, err := store.Lookup(ctx, schema)
		assert.NoError(t, err)
		assert.Len(t, objects, 2)
		assert.Equal(t, "Age", *objects[0].Values[0].Type)
		assert.Equal(t, "30002", *objects[1].Values[0].Value)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ZeroLimitSkipsQuery", func(t *testing.T) {
		store, mock := newMockStore(t, &Config{MaxRows: 0})

		objects, err := store.Lookup(ctx, schema)
		assert.NoError(t, err)
		assert.Empty(t, objects)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_GetStats(t *testing.T) {
	store, mock := newMockStore(t, &Config{})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COUNT(DISTINCT schema_key) FROM context_objects")).
		WillReturnRows(sqlmock.NewRows([]string{"count", "schemas"}).AddRow(12, 3))

	stats, err := store.GetStats(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(12), stats.TotalObjects)
	assert.Equal(t, int64(3), stats.Schemas)
}

func TestObjectHash(t *testing.T) {
	a := object("Age", "30", "Zip", "30001")
	b := object("Zip", "30001", "Age", "30")
	c := object("Age", "30", "Zip", "30002")

	sa, _ := anonymizer.InferSchema([]anonymizer.ObjectData{a})
	sb, _ := anonymizer.InferSchema([]anonymizer.ObjectData{b})
	sc, _ := anonymizer.InferSchema([]anonymizer.ObjectData{c})

	assert.Equal(t, objectHash(sa, a), objectHash(sb, b))
	assert.NotEqual(t, objectHash(sa, a), objectHash(sc, c))
	assert.Equal(t, "postgres://user:***@db:5432/petgw", maskDatabaseURL("postgres://user:secret@db:5432/petgw"))
}
