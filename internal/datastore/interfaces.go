// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"

	"github.com/MLAB-project/pysdr/internal/conf"
	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/observability/metrics"
)

// Interface abstracts the underlying database implementation
type Interface interface {
	Open() error
	// SaveEvent inserts rec or updates the stored occurrence with the same key
	SaveEvent(ctx context.Context, rec *EventRecord) error
	ListEvents(ctx context.Context, f Filter) ([]EventRecord, error)
	CountEvents(ctx context.Context, session string) (int64, error)
	Close() error
}

// New creates the store selected by settings. m may be nil.
func New(settings *conf.DatastoreSettings, m *metrics.DatastoreMetrics) (Interface, error) {
	base := DataStore{metrics: m, log: GetLogger()}
	switch settings.Type {
	case "", "sqlite":
		return &SQLiteStore{DataStore: base, Path: settings.SQLite.Path}, nil
	case "mysql":
		return &MySQLStore{DataStore: base, DSN: settings.MySQL.DSN}, nil
	default:
		return nil, errors.Newf("unknown datastore type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}
