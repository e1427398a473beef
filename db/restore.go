package db

import (
	"path"

	"github.com/aitownlabs/aitown/cmd"
	"github.com/aitownlabs/aitown/db/kv"
	"github.com/aitownlabs/aitown/io/file"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "db")

const dbExistsYesNoPrompt = "A database file already exists in the target directory. " +
	"Are you sure that you want to overwrite it? (Y/N)"

// Restore a town node database from a backup file.
func Restore(cliCtx *cli.Context) error {
	sourceFile := cliCtx.String(cmd.RestoreSourceFileFlag.Name)
	targetDir := cliCtx.String(cmd.RestoreTargetDirFlag.Name)

	restoreDir := path.Join(targetDir, kv.TownNodeDbDirName)
	if file.FileExists(path.Join(restoreDir, kv.DatabaseFileName)) {
		confirmed, err := cmd.ConfirmAction(dbExistsYesNoPrompt, "Restore aborted")
		if err != nil {
			return err
		}
		if !confirmed {
			return nil
		}
	}
	if err := file.MkdirAll(restoreDir); err != nil {
		return err
	}
	if err := file.CopyFile(sourceFile, path.Join(restoreDir, kv.DatabaseFileName)); err != nil {
		return err
	}

	log.Info("Restore completed successfully")
	return nil
}
