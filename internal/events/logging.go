package events

import "github.com/MLAB-project/pysdr/internal/logger"

// GetLogger returns the events logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("events")
}
