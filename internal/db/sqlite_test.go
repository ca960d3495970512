package db

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	t.Parallel()

	write := buildDSN("/tmp/sched.sqlite", ModeWrite)
	assert.True(t, strings.HasPrefix(write, "/tmp/sched.sqlite?"))
	for _, want := range []string{"_journal_mode=WAL", "_busy_timeout=5000", "_synchronous=NORMAL", "_foreign_keys=on", "_txlock=immediate"} {
		assert.Contains(t, write, want)
	}

	read := buildDSN("/tmp/sched.sqlite", ModeRead)
	assert.Contains(t, read, "_foreign_keys=on")
	assert.NotContains(t, read, "_txlock")
}

func TestOpenSQLite_InvalidMode(t *testing.T) {
	t.Parallel()
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"), Mode("rw"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SQLite mode")
}

func TestOpenSQLite_InvalidPath(t *testing.T) {
	t.Parallel()
	_, err := OpenSQLite("/nonexistent/dir/x.db", ModeWrite, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping sqlite")
}

func TestOpen_PoolSizesAndPragmas(t *testing.T) {
	t.Parallel()
	pools := OpenTestSQLite(t)

	assert.Equal(t, 1, pools.Write.Stats().MaxOpenConnections)
	assert.Equal(t, 4, pools.Read.Stats().MaxOpenConnections)

	var journal string
	require.NoError(t, pools.Read.QueryRow("PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", strings.ToLower(journal))

	var fk int
	require.NoError(t, pools.Write.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpen_AppliesMigrations(t *testing.T) {
	t.Parallel()
	pools := OpenTestSQLite(t)

	for _, table := range []string{"scheduled_queries", "tags", "query_tags", "audit_log"} {
		var name string
		err := pools.Read.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}

	v, err := SchemaVersion(pools.Write)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// Re-running is a no-op.
	require.NoError(t, RunMigrations(pools.Write))
}

func TestOpen_ConcurrentReadsDuringWrites(t *testing.T) {
	t.Parallel()
	pools := OpenTestSQLite(t)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := pools.Write.Exec(`INSERT INTO tags (id, name, created_by) VALUES (?, ?, 'alice')`,
				"t"+strings.Repeat("x", i), "tag-"+strings.Repeat("x", i))
			errs <- err
		}(i)
		go func() {
			defer wg.Done()
			var n int
			errs <- pools.Read.QueryRow(`SELECT count(*) FROM tags`).Scan(&n)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
