package wireless_scanner

import (
	"github.com/sirupsen/logrus"
)

// Module-level logger with pre-configured module field
var logger = logrus.WithField("module", "wireless_scanner")

// GetLogger returns a logger instance for the wireless_scanner module
func GetLogger() *logrus.Entry {
	return logger
}
