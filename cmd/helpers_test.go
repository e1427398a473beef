package cmd

import (
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/aitownlabs/aitown/testing/assert"
	"github.com/aitownlabs/aitown/testing/require"
)

func testApp() *cli.App {
	app := &cli.App{
		Flags: []cli.Flag{
			VerbosityFlag,
			DataDirFlag,
		},
		Commands: []*cli.Command{
			{
				Name: "db",
				Subcommands: []*cli.Command{
					{
						Name:   "restore",
						Action: func(_ *cli.Context) error { return nil },
					},
				},
			},
		},
		Before: func(ctx *cli.Context) error {
			return ValidateNoArgs(ctx)
		},
		Action: func(_ *cli.Context) error { return nil },
	}
	return app
}

func TestValidateNoArgs_OK(t *testing.T) {
	require.NoError(t, testApp().Run([]string{"townd"}))
	require.NoError(t, testApp().Run([]string{"townd", "--verbosity", "debug"}))
	require.NoError(t, testApp().Run([]string{"townd", "db", "restore"}))
}

func TestValidateNoArgs_UnrecognizedArgument(t *testing.T) {
	err := testApp().Run([]string{"townd", "garbage"})
	assert.ErrorContains(t, "unrecognized argument: garbage", err)
}

func TestValidateNoArgs_UnrecognizedSubcommand(t *testing.T) {
	err := testApp().Run([]string{"townd", "db", "garbage"})
	assert.ErrorContains(t, "unrecognized argument: garbage", err)
}

func TestWrapFlags_CoversTownFlagSet(t *testing.T) {
	flags := WrapFlags([]cli.Flag{
		VerbosityFlag,
		DataDirFlag,
		EnableTracingFlag,
		TraceSampleFractionFlag,
		MaxGoroutines,
		LogFormat,
	})
	assert.Equal(t, 6, len(flags))
}
