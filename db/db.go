// Package db defines the ability to create a new database for the town node,
// utilizing a bolt kv-store internally as its persistence layer.
package db

import (
	"context"

	"github.com/aitownlabs/aitown/db/iface"
	"github.com/aitownlabs/aitown/db/kv"
)

// Database defines the canonical interface backed by the kv store.
type Database = iface.Database

// ReadOnlyDatabase exposes only the query surface of the store.
type ReadOnlyDatabase = iface.ReadOnlyDatabase

// NoStepAccessDatabase exposes queries plus input submission, but cannot
// commit engine steps.
type NoStepAccessDatabase = iface.NoStepAccessDatabase

// ErrNotFound is returned when a given document is not found in the
// database.
var ErrNotFound = kv.ErrNotFound

// ErrStoreConflict is returned when a step commit lost a race against
// another writer of the same engine document.
var ErrStoreConflict = kv.ErrStoreConflict

// NewDB initializes a new DB.
func NewDB(ctx context.Context, dirPath string) (Database, error) {
	return kv.NewKVStore(ctx, dirPath)
}
