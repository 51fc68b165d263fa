package datastore

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	DSN string
}

// Open connects to MySQL and migrates the schema. The DSN should include parseTime=true.
func (store *MySQLStore) Open() error {
	if store.DSN == "" {
		return errors.Newf("mysql dsn is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	db, err := gorm.Open(mysql.Open(store.DSN), store.gormConfig())
	if err != nil {
		store.log.Error("failed to open MySQL database", logger.Error(err))
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open").
			Context("db_type", "mysql").
			Build()
	}

	store.DB = db
	store.log.Info("connected to MySQL event store")
	return store.migrate("mysql")
}

// Close closes the database
func (store *MySQLStore) Close() error {
	return store.closeDB("mysql")
}
