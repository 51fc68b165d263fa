// model.go this code defines the data model for stored events
package datastore

import "time"

// EventRecord is one event occurrence as persisted. Session, Identity and StartRow
// identify the occurrence, matching the correlator key within one session.
type EventRecord struct {
	ID          uint   `gorm:"primaryKey"`
	Session     string `gorm:"size:36;uniqueIndex:idx_events_occurrence,priority:1"`
	Identity    string `gorm:"size:128;uniqueIndex:idx_events_occurrence,priority:2;index:idx_events_identity"`
	StartRow    int64  `gorm:"uniqueIndex:idx_events_occurrence,priority:3"`
	EndRow      int64
	BeginTime   time.Time `gorm:"index:idx_events_begin"`
	EndTime     time.Time
	FreqLo      float64
	FreqHi      float64
	Description string `gorm:"size:256"`
	Source      string `gorm:"size:32"`
	Final       bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName keeps the table name stable
func (EventRecord) TableName() string { return "events" }

// Filter narrows ListEvents. Zero fields match everything.
type Filter struct {
	Session   string
	Identity  string
	Since     time.Time
	FinalOnly bool
	Limit     int
}
