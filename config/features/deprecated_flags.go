package features

import "github.com/urfave/cli/v2"

// Deprecated flags list.
const deprecatedUsage = "DEPRECATED. DO NOT USE."

var (
	// To deprecate a feature flag, first copy the example below, then insert deprecated flag in `deprecatedFlags`.
	exampleDeprecatedFeatureFlag = &cli.StringFlag{
		Name:   "name",
		Usage:  deprecatedUsage,
		Hidden: true,
	}
	deprecatedDisableNpcLoops = &cli.BoolFlag{
		Name:   "disable-npc-loops",
		Usage:  deprecatedUsage,
		Hidden: true,
	}
	deprecatedEnableConversationMemories = &cli.BoolFlag{
		Name:   "enable-conversation-memories",
		Usage:  deprecatedUsage,
		Hidden: true,
	}
	deprecatedEnableEmbeddingCache = &cli.BoolFlag{
		Name:   "enable-embedding-cache",
		Usage:  deprecatedUsage,
		Hidden: true,
	}
)

// Deprecated flags for the town node.
var deprecatedFlags = []cli.Flag{
	exampleDeprecatedFeatureFlag,
	deprecatedDisableNpcLoops,
	deprecatedEnableConversationMemories,
	deprecatedEnableEmbeddingCache,
}
