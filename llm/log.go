package llm

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "llm")
