package node

import (
	"github.com/aitownlabs/aitown/cmd"
	"github.com/aitownlabs/aitown/config/params"
	"github.com/aitownlabs/aitown/monitoring/tracing"
	"github.com/urfave/cli/v2"
)

func configureTracing(cliCtx *cli.Context) error {
	name := cliCtx.String(cmd.TracingProcessNameFlag.Name)
	if name == "" {
		name = "townd"
	}
	return tracing.Setup(
		name,
		cliCtx.String(cmd.TracingEndpointFlag.Name),
		cliCtx.Float64(cmd.TraceSampleFractionFlag.Name),
		cliCtx.Bool(cmd.EnableTracingFlag.Name),
	)
}

func configureTownConfig(cliCtx *cli.Context) {
	if cliCtx.IsSet(cmd.TownConfigFileFlag.Name) {
		params.LoadTownConfigFile(cliCtx.String(cmd.TownConfigFileFlag.Name))
	}
	if cliCtx.Bool(cmd.E2EConfigFlag.Name) {
		params.OverrideTownConfig(params.E2ETestConfig())
	}
}
