// Package maxprocs automatically sets GOMAXPROCS to match the Linux
// container CPU quota, if any. Import for side effects.
package maxprocs

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/automaxprocs/maxprocs"
)

func init() {
	if _, err := maxprocs.Set(maxprocs.Logger(logrus.Debugf)); err != nil {
		logrus.WithError(err).Debug("Failed to set maxprocs")
	}
}
