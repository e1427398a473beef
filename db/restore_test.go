package db

import (
	"context"
	"flag"
	"os"
	"path"
	"testing"

	"github.com/aitownlabs/aitown/cmd"
	"github.com/aitownlabs/aitown/db/kv"
	"github.com/aitownlabs/aitown/testing/assert"
	"github.com/aitownlabs/aitown/testing/require"
	"github.com/aitownlabs/aitown/types"
	logTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/urfave/cli/v2"
)

func TestRestore(t *testing.T) {
	logHook := logTest.NewGlobal()
	ctx := context.Background()

	backupDb, err := kv.NewKVStore(context.Background(), t.TempDir())
	require.NoError(t, err)
	world := &types.World{
		ID:        "w1",
		EngineID:  "e1",
		MapID:     "m1",
		Status:    types.WorldRunning,
		IsDefault: true,
	}
	require.NoError(t, backupDb.SaveWorld(ctx, world))
	require.NoError(t, backupDb.Close())
	// We rename the backup file so that we can later verify
	// whether the restored db has been renamed correctly.
	require.NoError(t, os.Rename(
		path.Join(backupDb.DatabasePath(), kv.DatabaseFileName),
		path.Join(backupDb.DatabasePath(), "backup.db")))

	restoreDir := t.TempDir()
	app := cli.App{}
	set := flag.NewFlagSet("test", 0)
	set.String(cmd.RestoreSourceFileFlag.Name, "", "")
	set.String(cmd.RestoreTargetDirFlag.Name, "", "")
	require.NoError(t, set.Set(cmd.RestoreSourceFileFlag.Name, path.Join(backupDb.DatabasePath(), "backup.db")))
	require.NoError(t, set.Set(cmd.RestoreTargetDirFlag.Name, restoreDir))
	cliCtx := cli.NewContext(&app, set, nil)

	assert.NoError(t, Restore(cliCtx))

	files, err := os.ReadDir(path.Join(restoreDir, kv.TownNodeDbDirName))
	require.NoError(t, err)
	assert.Equal(t, 1, len(files))
	assert.Equal(t, kv.DatabaseFileName, files[0].Name())
	restoredDb, err := kv.NewKVStore(context.Background(), path.Join(restoreDir, kv.TownNodeDbDirName))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, restoredDb.Close())
	}()
	restored, err := restoredDb.World(ctx, "w1")
	require.NoError(t, err)
	assert.DeepEqual(t, world, restored, "Restored database has incorrect data")
	assert.LogsContain(t, logHook, "Restore completed successfully")
}
