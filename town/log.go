package town

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "town")
