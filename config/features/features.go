/*
Package features defines which features are enabled for runtime
in order to selectively enable certain features to maintain a stable runtime.

The process for implementing new features using this package is as follows:
 1. Add a new CMD flag in flags.go, and place it in the proper list(s) var for its client.
 2. Add a condition for the flag in the proper Configure function(s) below.
 3. Place any "new" behavior in the `if flagEnabled` statement.
 4. Place any "previous" behavior in the `else` statement.
 5. Ensure any tests using the new feature fail if the flag isn't enabled.
 5a. Use the following to enable your flag for tests:

	cfg := &features.Flags{
		DisableAgents: true,
	}
	resetCfg := features.InitWithReset(cfg)
	defer resetCfg()
*/
package features

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "flags")

const enabledFeatureFlag = "Enabled feature flag"

// Flags is a struct to represent which features the client will perform on runtime.
type Flags struct {
	// DisableAgents stops the node from running agent decision loops. Worlds
	// still step: players move, conversations time out, humans can join, but
	// no agent acts on its own.
	DisableAgents bool
	// DisableModeration lets player-authored text into the world without the
	// language model screening call.
	DisableModeration bool
}

var featureConfig *Flags
var featureConfigLock sync.RWMutex

// Get retrieves feature config.
func Get() *Flags {
	featureConfigLock.RLock()
	defer featureConfigLock.RUnlock()

	if featureConfig == nil {
		return &Flags{}
	}
	return featureConfig
}

// Init sets the global config equal to the config that is passed in.
func Init(c *Flags) {
	featureConfigLock.Lock()
	defer featureConfigLock.Unlock()

	featureConfig = c
}

// InitWithReset sets the global config and returns function that is used to reset configuration.
func InitWithReset(c *Flags) func() {
	var prevConfig Flags
	if featureConfig != nil {
		prevConfig = *featureConfig
	} else {
		prevConfig = Flags{}
	}
	resetFunc := func() {
		Init(&prevConfig)
	}
	Init(c)
	return resetFunc
}

// ConfigureTownNode sets the global config based
// on what flags are enabled for the town node client.
func ConfigureTownNode(ctx *cli.Context) error {
	complainOnDeprecatedFlags(ctx)
	cfg := &Flags{}
	if ctx.Bool(DisableAgentsFlag.Name) {
		logEnabled(DisableAgentsFlag)
		cfg.DisableAgents = true
	}
	if ctx.Bool(DisableModerationFlag.Name) {
		logEnabled(DisableModerationFlag)
		cfg.DisableModeration = true
	}
	Init(cfg)
	return nil
}

func complainOnDeprecatedFlags(ctx *cli.Context) {
	for _, f := range deprecatedFlags {
		if ctx.IsSet(f.Names()[0]) {
			log.Errorf("%s is deprecated and has no effect. Do not use this flag, it will be deleted soon.", f.Names()[0])
		}
	}
}

func logEnabled(flag cli.DocGenerationFlag) {
	var name string
	if names := flag.Names(); len(names) > 0 {
		name = names[0]
	}
	log.WithField(name, flag.GetUsage()).Warn(enabledFeatureFlag)
}
