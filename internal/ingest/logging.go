package ingest

import "github.com/MLAB-project/pysdr/internal/logger"

// GetLogger returns the ingest logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("ingest")
}
