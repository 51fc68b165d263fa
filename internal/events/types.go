// Package events tracks marked regions of the waterfall and fans their lifecycle out to
// asynchronous consumers.
//
// The Correlator holds the live set keyed by (identity, start row) and is updated
// synchronously by detectors and ingestion. Every change is published as a Notification on
// the Bus, whose workers feed logging, MQTT, persistence and metrics without ever blocking
// the producer.
package events

import (
	"fmt"
	"time"
)

// Event is one marked region: a row range and a bin range with a description.
// StartRow may be negative when an event is back-dated past the first frame.
type Event struct {
	Identity    string `json:"identity"`
	StartRow    int64  `json:"start_row"`
	EndRow      int64  `json:"end_row"`
	BinLo       int    `json:"bin_lo"`
	BinHi       int    `json:"bin_hi"`
	Description string `json:"description"`
	Final       bool   `json:"final"`
	Source      string `json:"source"` // detector name or ingest transport
}

// Key is the de-duplication key of an event
type Key struct {
	Identity string
	StartRow int64
}

// Key returns the event's de-duplication key
func (e Event) Key() Key {
	return Key{Identity: e.Identity, StartRow: e.StartRow}
}

// String gives a compact human-readable form used in logs
func (e Event) String() string {
	return fmt.Sprintf("%s rows [%d, %d) bins [%d, %d) %q", e.Identity, e.StartRow, e.EndRow, e.BinLo, e.BinHi, e.Description)
}

// Lifecycle is the kind of change a Notification reports
type Lifecycle string

const (
	Created   Lifecycle = "created"
	Updated   Lifecycle = "updated"
	Finalized Lifecycle = "finalized"
	Pruned    Lifecycle = "pruned"
)

// Notification reports one change to the live event set
type Notification struct {
	Kind  Lifecycle
	Event Event
	At    time.Time
}

// Sink receives events from emitters. The Correlator implements it.
type Sink interface {
	Upsert(ev Event) Lifecycle
}

// Publisher accepts notifications without blocking. The Bus implements it.
type Publisher interface {
	TryPublish(n Notification) bool
}

// Consumer processes notifications delivered by the Bus
type Consumer interface {
	// Name returns the consumer name for identification
	Name() string

	// Process handles a single notification
	Process(n Notification) error
}

// BusStats contains runtime statistics for monitoring
type BusStats struct {
	Received       uint64
	Processed      uint64
	Dropped        uint64
	ConsumerErrors uint64
}
