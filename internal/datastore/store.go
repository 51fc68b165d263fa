package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/logger"
	"github.com/MLAB-project/pysdr/internal/observability/metrics"
)

// slowQueryThreshold marks queries logged as slow by the gorm adapter
const slowQueryThreshold = 200 * time.Millisecond

// DataStore implements the queries shared by every backend
type DataStore struct {
	DB      *gorm.DB
	metrics *metrics.DatastoreMetrics
	log     logger.Logger
}

func (ds *DataStore) gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.NewGormLoggerAdapter(ds.log, slowQueryThreshold)}
}

func (ds *DataStore) record(op, status string, start time.Time) {
	if ds.metrics != nil {
		ds.metrics.RecordOperation(op, status, time.Since(start).Seconds())
	}
}

func (ds *DataStore) dbError(err error, op string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Build()
}

func (ds *DataStore) ready() error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}
	return nil
}

// migrate creates or updates the events table
func (ds *DataStore) migrate(dbType string) error {
	start := time.Now()
	if err := ds.DB.AutoMigrate(&EventRecord{}); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("db_type", dbType).
			Build()
	}
	ds.log.Debug("database migration completed",
		logger.String("db_type", dbType),
		logger.Duration("duration", time.Since(start)))
	return nil
}

// SaveEvent inserts rec, or updates the stored row with the same session, identity and
// start row. rec.ID is set to the stored row id.
func (ds *DataStore) SaveEvent(ctx context.Context, rec *EventRecord) error {
	if err := ds.ready(); err != nil {
		return err
	}

	start := time.Now()
	op := metrics.OpInsert
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing EventRecord
		res := tx.Where("session = ? AND identity = ? AND start_row = ?", rec.Session, rec.Identity, rec.StartRow).
			Limit(1).Find(&existing)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Create(rec).Error
		}

		op = metrics.OpUpdate
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		return tx.Model(&existing).Select("end_row", "end_time", "freq_lo", "freq_hi", "description", "source", "final", "updated_at").
			Updates(rec).Error
	})
	if err != nil {
		ds.record(op, metrics.StatusError, start)
		return ds.dbError(err, "save_event")
	}
	ds.record(op, metrics.StatusSuccess, start)
	return nil
}

// ListEvents returns stored events ordered by begin time, newest first
func (ds *DataStore) ListEvents(ctx context.Context, f Filter) ([]EventRecord, error) {
	if err := ds.ready(); err != nil {
		return nil, err
	}

	start := time.Now()
	q := ds.DB.WithContext(ctx).Model(&EventRecord{})
	if f.Session != "" {
		q = q.Where("session = ?", f.Session)
	}
	if f.Identity != "" {
		q = q.Where("identity = ?", f.Identity)
	}
	if !f.Since.IsZero() {
		q = q.Where("begin_time >= ?", f.Since)
	}
	if f.FinalOnly {
		q = q.Where("final = ?", true)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []EventRecord
	if err := q.Order("begin_time DESC, id DESC").Find(&out).Error; err != nil {
		ds.record(metrics.OpQuery, metrics.StatusError, start)
		return nil, ds.dbError(err, "list_events")
	}
	ds.record(metrics.OpQuery, metrics.StatusSuccess, start)
	return out, nil
}

// CountEvents counts stored events, optionally for one session
func (ds *DataStore) CountEvents(ctx context.Context, session string) (int64, error) {
	if err := ds.ready(); err != nil {
		return 0, err
	}
	q := ds.DB.WithContext(ctx).Model(&EventRecord{})
	if session != "" {
		q = q.Where("session = ?", session)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, ds.dbError(err, "count_events")
	}
	return n, nil
}

func (ds *DataStore) closeDB(dbType string) error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return ds.dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return ds.dbError(err, "close")
	}
	ds.DB = nil
	ds.log.Debug("database connection closed", logger.String("db_type", dbType))
	return nil
}
