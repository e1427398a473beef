package params

const (
	Default ConfigName = iota
	EndToEnd
)

// ConfigNames provides simulation configuration names.
var ConfigNames = map[ConfigName]string{
	Default:  "default",
	EndToEnd: "end-to-end",
}

// ConfigName enum describes the type of known simulation config in use.
type ConfigName int

func (n ConfigName) String() string {
	s, ok := ConfigNames[n]
	if !ok {
		return "undefined"
	}
	return s
}

// AllConfigs returns a config instance for every known config name.
func AllConfigs() map[ConfigName]*TownSimConfig {
	all := make(map[ConfigName]*TownSimConfig)
	for name := range ConfigNames {
		var cfg *TownSimConfig
		switch name {
		case Default:
			cfg = DefaultConfig()
		case EndToEnd:
			cfg = E2ETestConfig()
		}
		if cfg != nil {
			all[name] = cfg.Copy()
		}
	}
	return all
}
