package node

import (
	"flag"
	"path/filepath"
	"testing"

	"github.com/aitownlabs/aitown/cmd"
	"github.com/aitownlabs/aitown/cmd/townd/flags"
	"github.com/aitownlabs/aitown/testing/require"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/urfave/cli/v2"
)

// Test that the town node can close.
func TestNodeClose_OK(t *testing.T) {
	hook := logtest.NewGlobal()

	tmp := filepath.Join(t.TempDir(), "datadirtest")

	app := cli.App{}
	set := flag.NewFlagSet("test", 0)
	set.String(cmd.DataDirFlag.Name, tmp, "node data directory")
	set.String(flags.OpenAIAPIKeyFlag.Name, "test-key", "language model api key")
	ctx := cli.NewContext(&app, set, nil)

	townNode, err := New(ctx)
	require.NoError(t, err)

	townNode.Close()

	require.LogsContain(t, hook, "Stopping town node")
}

// TestClearDB tests clearing the database on startup.
func TestClearDB(t *testing.T) {
	hook := logtest.NewGlobal()

	tmp := filepath.Join(t.TempDir(), "datadirtest")

	app := cli.App{}
	set := flag.NewFlagSet("test", 0)
	set.String(cmd.DataDirFlag.Name, tmp, "node data directory")
	set.String(flags.OpenAIAPIKeyFlag.Name, "test-key", "language model api key")
	set.Bool(cmd.ForceClearDB.Name, true, "force clear db")
	ctx := cli.NewContext(&app, set, nil)

	townNode, err := New(ctx)
	require.NoError(t, err)
	defer townNode.Close()

	require.LogsContain(t, hook, "Removing database")
}
