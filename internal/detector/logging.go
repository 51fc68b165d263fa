package detector

import "github.com/MLAB-project/pysdr/internal/logger"

// GetLogger returns the detector engine logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("detector")
}
