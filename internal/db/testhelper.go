package db

import (
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a migrated pool pair in t.TempDir() and closes it on
// cleanup. Tests that don't care about the split can use Write for
// everything.
func OpenTestSQLite(t *testing.T) *Pools {
	t.Helper()

	pools, err := Open(filepath.Join(t.TempDir(), "test.sqlite"), 4)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = pools.Close() })
	return pools
}
