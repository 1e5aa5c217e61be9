package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bertramr/cimdb/pkg/store"
	"github.com/bertramr/cimdb/pkg/testutil"
)

func TestOpenDialect(t *testing.T) {
	t.Parallel()

	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		d, err := store.OpenDialect("sqlite")
		require.NoError(t, err)
		require.False(t, d.SupportsDeferredConstraints())
		require.Equal(t, "?", d.Placeholder(3))
		require.Equal(t, "DROP TABLE IF EXISTS terminal", d.DropTableSQL("terminal"))
	})

	t.Run("postgres", func(t *testing.T) {
		t.Parallel()
		d, err := store.OpenDialect("postgres")
		require.NoError(t, err)
		require.True(t, d.SupportsDeferredConstraints())
		require.Equal(t, "$3", d.Placeholder(3))
		// Referenced tables drop in arbitrary order with no enforcement
		// toggle available, so the statement must cascade.
		require.Equal(t, "DROP TABLE IF EXISTS terminal CASCADE", d.DropTableSQL("terminal"))
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		_, err := store.OpenDialect("oracle")
		require.Error(t, err)
	})
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testutil.OpenSQLite(t)

	t.Run("meta tables migrated", func(t *testing.T) {
		count, err := db.Count(ctx, "source_info")
		require.NoError(t, err)
		require.Zero(t, count)
		count, err = db.Count(ctx, "enum_value")
		require.NoError(t, err)
		require.Zero(t, count)
	})

	t.Run("validates config", func(t *testing.T) {
		_, err := store.Open(ctx, store.Config{Driver: "sqlite", DSN: "x"})
		require.Error(t, err)
		_, err = store.Open(ctx, store.Config{Logger: testutil.NewLogger(), Driver: "sqlite"})
		require.Error(t, err)
	})
}

func TestCreateTables(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testutil.OpenSQLite(t)
	sch := testutil.LoadSchema(t)

	require.NoError(t, db.CreateTables(ctx, sch))

	t.Run("materializes one table per class", func(t *testing.T) {
		tables, err := db.Dialect().ListTables(ctx, db.SQL())
		require.NoError(t, err)
		have := map[string]bool{}
		for _, table := range tables {
			have[table] = true
		}
		for _, class := range sch.Hierarchy() {
			require.True(t, have[class.TableName()], "missing table %s", class.TableName())
		}
	})

	t.Run("seeds enum values", func(t *testing.T) {
		count, err := db.Count(ctx, "enum_value")
		require.NoError(t, err)
		require.EqualValues(t, 2, count)
	})

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, db.CreateTables(ctx, sch))
		count, err := db.Count(ctx, "enum_value")
		require.NoError(t, err)
		require.EqualValues(t, 2, count)
	})
}

func TestReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testutil.OpenSQLite(t)
	sch := testutil.LoadSchema(t)

	require.NoError(t, db.CreateTables(ctx, sch))
	insertRows(t, db, "identifiedobject", []string{"id", "cim_type"}, [][]any{{"X1", "IdentifiedObject"}})

	require.NoError(t, db.Reset(ctx))

	tables, err := db.Dialect().ListTables(ctx, db.SQL())
	require.NoError(t, err)
	have := map[string]bool{}
	for _, table := range tables {
		have[table] = true
	}
	require.False(t, have["identifiedobject"], "model tables must not survive a reset")
	require.True(t, have["source_info"], "meta tables must come back after a reset")

	count, err := db.Count(ctx, "source_info")
	require.NoError(t, err)
	require.Zero(t, count)
}

// insertRows commits rows through a short-lived session.
func insertRows(t *testing.T, db *store.DB, table string, cols []string, rows [][]any) {
	t.Helper()
	ctx := context.Background()
	sess, err := db.NewSession(ctx)
	require.NoError(t, err)
	defer sess.Close()
	require.NoError(t, sess.Begin(ctx))
	sess.BulkInsert(table, cols, rows)
	require.NoError(t, sess.Commit(ctx))
}
