package canvas

import "github.com/MLAB-project/pysdr/internal/logger"

// GetLogger returns the canvas logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("canvas")
}
