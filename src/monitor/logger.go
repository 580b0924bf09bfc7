package monitor

import (
	"github.com/sirupsen/logrus"
)

// Module-level logger with pre-configured module field
var logger = logrus.WithField("module", "monitor")

// GetLogger returns a logger instance for the monitor module
func GetLogger() *logrus.Entry {
	return logger
}
