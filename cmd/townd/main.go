// Package main defines the town node implementation: a persistent,
// deterministic simulation server hosting a virtual town of LLM-driven
// characters and serving its live state to browser clients over HTTP.
package main

import (
	"fmt"
	"os"
	runtimeDebug "runtime/debug"

	"github.com/aitownlabs/aitown/cmd"
	dbcommands "github.com/aitownlabs/aitown/cmd/townd/db"
	"github.com/aitownlabs/aitown/cmd/townd/flags"
	"github.com/aitownlabs/aitown/config/features"
	"github.com/aitownlabs/aitown/io/logs"
	"github.com/aitownlabs/aitown/node"
	"github.com/aitownlabs/aitown/runtime/debug"
	_ "github.com/aitownlabs/aitown/runtime/maxprocs"
	"github.com/aitownlabs/aitown/runtime/version"
	joonix "github.com/joonix/log"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var log = logrus.WithField("prefix", "main")

func startNode(ctx *cli.Context) error {
	verbosity := ctx.String(cmd.VerbosityFlag.Name)
	level, err := logrus.ParseLevel(verbosity)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	townNode, err := node.New(ctx)
	if err != nil {
		return err
	}
	townNode.Start()
	return nil
}

var appFlags = []cli.Flag{
	flags.HTTPHost,
	flags.HTTPPort,
	flags.HTTPCorsDomain,
	flags.LLMHostFlag,
	flags.OpenAIAPIKeyFlag,
	flags.ChatModelFlag,
	flags.EmbeddingModelFlag,
	flags.MonitoringPortFlag,
	cmd.VerbosityFlag,
	cmd.DataDirFlag,
	cmd.EnableTracingFlag,
	cmd.TracingProcessNameFlag,
	cmd.TracingEndpointFlag,
	cmd.TraceSampleFractionFlag,
	cmd.MonitoringHostFlag,
	cmd.DisableMonitoringFlag,
	cmd.MaxGoroutines,
	cmd.LogFormat,
	cmd.LogFileName,
	cmd.ConfigFileFlag,
	cmd.TownConfigFileFlag,
	cmd.E2EConfigFlag,
	cmd.ClearDB,
	cmd.ForceClearDB,
	cmd.EnableBackupWebhookFlag,
	cmd.BackupWebhookOutputDir,
	cmd.RestoreSourceFileFlag,
	cmd.RestoreTargetDirFlag,
	debug.PProfFlag,
	debug.PProfAddrFlag,
	debug.PProfPortFlag,
	debug.MemProfileRateFlag,
	debug.BlockProfileRateFlag,
	debug.MutexProfileFractionFlag,
	debug.CPUProfileFlag,
	debug.TraceFlag,
}

func init() {
	appFlags = cmd.WrapFlags(append(appFlags, features.TownNodeFlags...))
}

func main() {
	app := cli.App{}
	app.Name = "townd"
	app.Usage = "launches an AI town node, a simulation server hosting a persistent virtual town of language-model-driven characters"
	app.Action = func(ctx *cli.Context) error {
		if err := startNode(ctx); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		return nil
	}
	app.Version = version.GetVersion()
	app.Commands = []*cli.Command{
		dbcommands.Commands,
	}
	app.Flags = appFlags

	app.Before = func(ctx *cli.Context) error {
		// Load flags from config file, if specified.
		if err := cmd.LoadFlagsFromConfig(ctx, app.Flags); err != nil {
			return err
		}

		format := ctx.String(cmd.LogFormat.Name)
		switch format {
		case "text":
			formatter := new(prefixed.TextFormatter)
			formatter.TimestampFormat = "2006-01-02 15:04:05"
			formatter.FullTimestamp = true
			// If persistent log files are written - we disable the log messages coloring because
			// the colors are ANSI codes and seen as Gibberish in the log files.
			formatter.DisableColors = ctx.String(cmd.LogFileName.Name) != ""
			logrus.SetFormatter(formatter)
		case "fluentd":
			logrus.SetFormatter(joonix.NewFormatter())
		case "json":
			logrus.SetFormatter(&logrus.JSONFormatter{})
		default:
			return fmt.Errorf("unknown log format %s", format)
		}

		logFileName := ctx.String(cmd.LogFileName.Name)
		if logFileName != "" {
			if err := logs.ConfigurePersistentLogging(logFileName); err != nil {
				log.WithError(err).Error("Failed to configuring logging to disk.")
			}
		}

		if err := debug.Setup(ctx); err != nil {
			return err
		}
		return cmd.ValidateNoArgs(ctx)
	}

	app.After = func(ctx *cli.Context) error {
		debug.Exit(ctx)
		return nil
	}

	defer func() {
		if x := recover(); x != nil {
			log.Errorf("Runtime panic: %v\n%v", x, string(runtimeDebug.Stack()))
			panic(x)
		}
	}()

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
	}
}
