package params

import (
	"sync"

	"github.com/mohae/deepcopy"
)

var townConfig = DefaultConfig()
var townConfigLock sync.RWMutex

// TownConf retrieves the current town config.
func TownConfig() *TownSimConfig {
	townConfigLock.RLock()
	defer townConfigLock.RUnlock()
	return townConfig
}

// OverrideTownConfig by replacing the config. The preferred pattern is to
// call TownConfig(), change the specific parameters, and then call
// OverrideTownConfig(c). Any subsequent calls to params.TownConfig() will
// return this new configuration.
func OverrideTownConfig(c *TownSimConfig) {
	townConfigLock.Lock()
	defer townConfigLock.Unlock()
	townConfig = c
}

// Copy returns a copy of the config object.
func (c *TownSimConfig) Copy() *TownSimConfig {
	townConfigLock.RLock()
	defer townConfigLock.RUnlock()
	config, ok := deepcopy.Copy(*c).(TownSimConfig)
	if !ok {
		config = *townConfig
	}
	return &config
}
