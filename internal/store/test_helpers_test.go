package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/kquery/internal/testutil"
	"github.com/roach88/kquery/internal/value"
)

// createTestStore creates a new store in a temporary directory. Created
// objects get the identifiers obj-1, obj-2, ...
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDs(testutil.NewSequentialIDs("obj")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func trunk(typ, id string) value.Key {
	return value.Key{Branch: value.TrunkBranch, ID: id, Type: typ, Revision: value.Current}
}
