// Package kv defines a bolt-db, key-value store implementation of the
// Database interface defined by a town node.
package kv

import (
	"context"
	"os"
	"path"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	prombbolt "github.com/prysmaticlabs/prombbolt"
	bolt "go.etcd.io/bbolt"

	"github.com/aitownlabs/aitown/db/iface"
	"github.com/aitownlabs/aitown/io/file"
)

const (
	// TownNodeDbDirName is the name of the directory containing the town
	// node database.
	TownNodeDbDirName = "towndata"
	// DatabaseFileName is the name of the town node database.
	DatabaseFileName = "town.db"

	boltAllocSize = 8 * 1024 * 1024
	// The size of the world map cache. Maps are immutable once created, so
	// a handful of decoded entries covers every world a node hosts.
	mapCacheSize = 8
)

// ErrNotFound is returned when a given document is not found in the database.
var ErrNotFound = errors.New("not found in db")

// ErrStoreConflict is returned when a step commit observes that the engine
// document changed after the step loaded it, e.g. because a kick raced the
// running step. The losing step must discard its writes.
var ErrStoreConflict = errors.New("engine document changed since step began")

var _ iface.Database = (*Store)(nil)

// Store defines an implementation of the town Database interface using
// BoltDB as the underlying persistent kv-store.
type Store struct {
	db           *bolt.DB
	databasePath string
	mapCache     *lru.Cache
}

// KVStoreDatafilePath is the canonical construction of a full path to the
// database file in a given datadir.
func KVStoreDatafilePath(dirPath string) string {
	return path.Join(dirPath, DatabaseFileName)
}

// NewKVStore initializes a new boltDB key-value store at the directory path
// specified, creates the kv-buckets based on the schema, and stores an open
// connection db object as a property of the Store struct.
func NewKVStore(ctx context.Context, dirPath string) (*Store, error) {
	hasDir, err := file.HasDir(dirPath)
	if err != nil {
		return nil, err
	}
	if !hasDir {
		if err := file.MkdirAll(dirPath); err != nil {
			return nil, err
		}
	}
	datafile := KVStoreDatafilePath(dirPath)
	boltDB, err := bolt.Open(
		datafile,
		0600,
		&bolt.Options{
			Timeout:         1 * time.Second,
			InitialMmapSize: 10e6,
		},
	)
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, err
	}
	boltDB.AllocSize = boltAllocSize

	mapCache, err := lru.New(mapCacheSize)
	if err != nil {
		return nil, err
	}
	kv := &Store{
		db:           boltDB,
		databasePath: dirPath,
		mapCache:     mapCache,
	}

	if err := kv.db.Update(func(tx *bolt.Tx) error {
		return createBuckets(
			tx,
			enginesBucket,
			inputsBucket,
			worldsBucket,
			mapsBucket,
			playersBucket,
			locationsBucket,
			conversationsBucket,
			membersBucket,
			messagesBucket,
			agentsBucket,
			memoriesBucket,
			tasksBucket,
			// Indices buckets.
			inputIDIndicesBucket,
		)
	}); err != nil {
		return nil, err
	}
	err = prometheus.Register(createBoltCollector(kv.db))
	return kv, err
}

// ClearDB removes the previously stored database in the data directory.
func (s *Store) ClearDB() error {
	if _, err := os.Stat(s.databasePath); os.IsNotExist(err) {
		return nil
	}
	prometheus.Unregister(createBoltCollector(s.db))
	if err := s.Close(); err != nil {
		return errors.Wrap(err, "failed to close db prior to clearing")
	}
	if err := os.Remove(KVStoreDatafilePath(s.databasePath)); err != nil {
		return errors.Wrap(err, "could not remove database file")
	}
	return nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	prometheus.Unregister(createBoltCollector(s.db))
	return s.db.Close()
}

// DatabasePath at which this database writes files.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

func createBuckets(tx *bolt.Tx, buckets ...[]byte) error {
	for _, bucket := range buckets {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
	}
	return nil
}

// createBoltCollector returns a prometheus collector specifically configured
// for boltdb.
func createBoltCollector(db *bolt.DB) prometheus.Collector {
	return prombbolt.New("boltDB", db)
}
