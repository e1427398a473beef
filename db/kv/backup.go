package kv

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/aitownlabs/aitown/io/file"
)

const backupsDirectoryName = "backups"

// Backup the database to the datadir backup directory, or to outputDir when
// one is given. Example: $DATADIR/backups/towndb_at_1724659200.backup. The
// backup file is written with the database's own 0600 permissions unless the
// caller overrides them for sharing.
func (s *Store) Backup(ctx context.Context, outputDir string, permissionOverride bool) error {
	_, span := trace.StartSpan(ctx, "TownDB.Backup")
	defer span.End()

	baseDir := outputDir
	if baseDir == "" {
		baseDir = s.databasePath
	}
	backupsDir := path.Join(baseDir, backupsDirectoryName)
	// Ensure the backups directory exists.
	if err := file.MkdirAll(backupsDir); err != nil {
		return err
	}
	backupPath := path.Join(backupsDir, fmt.Sprintf("towndb_at_%d.backup", time.Now().Unix()))
	logrus.WithField("prefix", "db").WithField("backup", backupPath).Info("Writing backup database")

	perm := os.FileMode(0600)
	if permissionOverride {
		perm = 0666
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(backupPath, perm)
	})
}
