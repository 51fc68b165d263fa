// Package datastore persists event occurrences with gorm on SQLite or MySQL.
package datastore

import "github.com/MLAB-project/pysdr/internal/logger"

// GetLogger returns the datastore logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}
