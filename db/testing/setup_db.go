// Package testing allows for spinning up a real bolt-db instance for unit
// tests throughout the repo.
package testing

import (
	"context"
	"testing"

	"github.com/aitownlabs/aitown/db"
	"github.com/aitownlabs/aitown/db/kv"
	"github.com/aitownlabs/aitown/testing/require"
)

// SetupDB instantiates and returns a database backed by a key value store.
func SetupDB(t testing.TB) db.Database {
	s, err := kv.NewKVStore(context.Background(), t.TempDir())
	require.NoError(t, err, "Failed to instantiate DB")
	t.Cleanup(func() {
		require.NoError(t, s.Close(), "Failed to close database")
	})
	return s
}
