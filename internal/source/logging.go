package source

import "github.com/MLAB-project/pysdr/internal/logger"

// GetLogger returns the sample source logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("source")
}
