package features

import (
	"reflect"

	"github.com/urfave/cli/v2"
)

var (
	// DisableAgentsFlag stops agent decision loops on this node.
	DisableAgentsFlag = &cli.BoolFlag{
		Name:  "disable-agents",
		Usage: "Disables running agent decision loops. Worlds keep stepping but no agent acts on its own.",
	}
	// DisableModerationFlag skips the language model screening of player text.
	DisableModerationFlag = &cli.BoolFlag{
		Name:  "disable-moderation",
		Usage: "Disables screening player-authored text through the language model moderation endpoint.",
	}
)

// TownNodeFlags contains a list of all the feature flags that apply to the town node client.
var TownNodeFlags = append(deprecatedFlags,
	DisableAgentsFlag,
	DisableModerationFlag,
)

// ActiveFlags returns all of the flags that are not hidden.
func ActiveFlags(flags []cli.Flag) []cli.Flag {
	visibleFlags := make([]cli.Flag, 0, len(flags))
	for _, f := range flags {
		field := reflect.Indirect(reflect.ValueOf(f)).FieldByName("Hidden")
		if !field.IsValid() || !field.Bool() {
			visibleFlags = append(visibleFlags, f)
		}
	}
	return visibleFlags
}
