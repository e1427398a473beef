// Package flags contains cli flag types shared by the town node commands.
package flags

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

// EnumValue is a cli flag constrained to a fixed set of string values, used
// for options like the log output format.
type EnumValue struct {
	Name        string
	Usage       string
	Destination *string
	Enum        []string
	Value       string
}

// Set stores value in the destination if it is one of the allowed values.
func (e *EnumValue) Set(value string) error {
	for _, enum := range e.Enum {
		if enum == value {
			*e.Destination = value
			return nil
		}
	}
	return fmt.Errorf("allowed values are %s", strings.Join(e.Enum, ", "))
}

func (e *EnumValue) String() string {
	if e.Destination == nil || *e.Destination == "" {
		return e.Value
	}
	return *e.Destination
}

// GenericFlag adapts the EnumValue to the cli.Flag interface, seeding the
// destination with the default value.
func (e EnumValue) GenericFlag() *cli.GenericFlag {
	*e.Destination = e.Value
	var i cli.Generic = &e
	return &cli.GenericFlag{Name: e.Name, Usage: e.Usage, Value: i}
}
