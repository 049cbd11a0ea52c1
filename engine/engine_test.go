package engine

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/jobala/petrosql/metrics"
	"github.com/jobala/petrosql/types"
	"github.com/jobala/petrosql/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var seedQueries = []string{
	"CREATE TABLE user (id INT, name STRING, age INT)",
	"CREATE TABLE admin (id INT, user_id INT)",
	`INSERT INTO user (id, name, age) VALUES (1,"Garry",10),(2,"Barry",15),(3,"Larry",5)`,
	"INSERT INTO admin (id, user_id) VALUES(1,2),(1,3)",
}

func TestExec(t *testing.T) {
	t.Run("streams rows to the callback", func(t *testing.T) {
		e := openSeeded(t)

		rows := collect(t, e, "SELECT name, age FROM user WHERE id IN (SELECT user_id FROM admin)")
		assert.Equal(t, []types.Row{
			{types.String("Barry"), types.Int(15)},
			{types.String("Larry"), types.Int(5)},
		}, rows)
	})

	t.Run("reports changed rows", func(t *testing.T) {
		e := openSeeded(t)

		require.NoError(t, e.Exec("UPDATE user SET age = 1 WHERE age > 6", ignoreRows))
		assert.Equal(t, 2, e.Changes())

		require.NoError(t, e.Exec("SELECT 1", ignoreRows))
		assert.Equal(t, 0, e.Changes())
	})

	t.Run("database errors leave the engine usable", func(t *testing.T) {
		e := openSeeded(t)

		err := e.Exec("SELEC 1", ignoreRows)
		var syntaxErr *util.SyntaxError
		assert.ErrorAs(t, err, &syntaxErr)

		err = e.Exec("SELECT * FROM nobody", ignoreRows)
		var semanticErr *util.SemanticError
		assert.ErrorAs(t, err, &semanticErr)

		err = e.Exec("SELECT 1 / 0", ignoreRows)
		assert.True(t, util.IsDatabaseError(err))

		assert.Len(t, collect(t, e, "SELECT * FROM user"), 3)
	})

	t.Run("callback errors stop the query", func(t *testing.T) {
		e := openSeeded(t)
		stop := errors.New("stop")

		calls := 0
		err := e.Exec("SELECT id FROM user", func(types.Row) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)

		assert.Len(t, collect(t, e, "SELECT id FROM user"), 3)
	})

	t.Run("closed engines refuse queries", func(t *testing.T) {
		e, err := OpenMemory()
		require.NoError(t, err)
		require.NoError(t, e.Close())
		assert.NoError(t, e.Close())

		assert.ErrorIs(t, e.Exec("SELECT 1", ignoreRows), ErrClosed)
	})
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petro.db")

	e, err := OpenPath(path, true)
	require.NoError(t, err)
	for _, q := range seedQueries {
		require.NoError(t, e.Exec(q, ignoreRows))
	}
	require.NoError(t, e.Exec("DELETE FROM user WHERE id = 2", ignoreRows))
	require.NoError(t, e.Close())

	e, err = OpenPath(path, false)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, []string{"user", "admin"}, e.Tables())
	assert.Equal(t, []types.Row{
		{types.Int(1), types.String("Garry"), types.Int(10)},
		{types.Int(3), types.String("Larry"), types.Int(5)},
	}, collect(t, e, "SELECT * FROM user"))

	require.NoError(t, e.Exec(`INSERT INTO user VALUES (4, "Mary", 20)`, ignoreRows))
	assert.Len(t, collect(t, e, "SELECT id FROM user"), 3)
}

func TestObservability(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	e, err := OpenMemory(WithLogger(zap.New(core)), WithMetrics(m), WithCacheSize(4))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	for _, q := range seedQueries {
		require.NoError(t, e.Exec(q, ignoreRows))
	}
	collect(t, e, "SELECT * FROM user")
	assert.Error(t, e.Exec("SELECT nope FROM user", ignoreRows))

	assert.Equal(t, 5, logs.FilterMessage("query finished").Len())
	failed := logs.FilterMessage("query failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	assert.Equal(t, "SELECT nope FROM user", failed[0].ContextMap()["query"])

	families, err := reg.Gather()
	require.NoError(t, err)

	sum := func(name string) float64 {
		total := 0.0
		for _, family := range families {
			if family.GetName() != name {
				continue
			}
			for _, metric := range family.GetMetric() {
				total += metric.GetCounter().GetValue()
			}
		}
		return total
	}
	assert.Equal(t, 6.0, sum("petrosql_queries_total"))
	assert.Equal(t, 3.0, sum("petrosql_rows_returned_total"))
	assert.Equal(t, 2.0, sum("petrosql_btree_nodes_allocated_total"))
}

func openSeeded(t *testing.T) *Engine {
	t.Helper()

	e, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	for _, q := range seedQueries {
		require.NoError(t, e.Exec(q, ignoreRows))
	}
	return e
}

func collect(t *testing.T, e *Engine, query string) []types.Row {
	t.Helper()

	var rows []types.Row
	require.NoError(t, e.Exec(query, func(row types.Row) error {
		rows = append(rows, row)
		return nil
	}))
	return rows
}

func ignoreRows(types.Row) error {
	return nil
}
