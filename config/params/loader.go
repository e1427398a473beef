package params

import (
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// LoadTownConfigFile loads, unmarshals, and applies a town config file. Values
// absent from the file keep their defaults, so a file overriding a single
// constant is valid.
func LoadTownConfigFile(configFileName string) {
	yamlFile, err := os.ReadFile(configFileName) // #nosec G304
	if err != nil {
		log.WithError(err).Fatal("Failed to read town config file.")
	}
	conf := DefaultConfig().Copy()
	hasConfigName := false
	if err := yaml.UnmarshalStrict(yamlFile, conf); err != nil {
		if _, ok := err.(*yaml.TypeError); !ok {
			log.WithError(err).Fatal("Failed to parse town config yaml file.")
		} else {
			log.WithError(err).Error("There were some issues parsing the config from a yaml file")
		}
	}
	if conf.ConfigName != "" && conf.ConfigName != DefaultConfig().ConfigName {
		hasConfigName = true
	}
	if !hasConfigName {
		conf.ConfigName = "custom"
	}
	log.Debugf("Config file values: %+v", conf)
	OverrideTownConfig(conf)
}
