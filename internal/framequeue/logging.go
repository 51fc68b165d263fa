package framequeue

import "github.com/MLAB-project/pysdr/internal/logger"

// GetLogger returns the frame queue logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("framequeue")
}
