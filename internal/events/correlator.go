package events

import (
	"sync"
	"time"

	"github.com/MLAB-project/pysdr/internal/logger"
	"github.com/MLAB-project/pysdr/internal/observability/metrics"
)

// Correlator merges events from every emitter into one de-duplicated live set.
//
// An event whose (identity, start row) matches a live entry replaces it in place; anything
// else is appended. Two unrelated occurrences that share identity and start row are
// therefore merged into one entry.
type Correlator struct {
	mu      sync.RWMutex
	entries []Event
	index   map[Key]int

	publisher Publisher
	metrics   *metrics.EventMetrics
	log       logger.Logger
	now       func() time.Time
}

// CorrelatorOption configures a Correlator
type CorrelatorOption func(*Correlator)

// WithPublisher forwards lifecycle notifications, normally to a Bus
func WithPublisher(p Publisher) CorrelatorOption {
	return func(c *Correlator) { c.publisher = p }
}

// WithCorrelatorMetrics reports live, created, updated and pruned counts
func WithCorrelatorMetrics(m *metrics.EventMetrics) CorrelatorOption {
	return func(c *Correlator) { c.metrics = m }
}

// WithCorrelatorLogger overrides the package logger
func WithCorrelatorLogger(l logger.Logger) CorrelatorOption {
	return func(c *Correlator) { c.log = l }
}

// NewCorrelator creates an empty correlator
func NewCorrelator(opts ...CorrelatorOption) *Correlator {
	c := &Correlator{
		index: make(map[Key]int),
		log:   GetLogger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upsert adds ev or replaces the live entry with the same key, and reports which
func (c *Correlator) Upsert(ev Event) Lifecycle {
	key := ev.Key()

	c.mu.Lock()
	kind := Created
	if i, ok := c.index[key]; ok {
		kind = Updated
		if ev.Final && !c.entries[i].Final {
			kind = Finalized
		}
		c.entries[i] = ev
	} else {
		c.index[key] = len(c.entries)
		c.entries = append(c.entries, ev)
	}
	live := len(c.entries)
	c.mu.Unlock()

	if c.metrics != nil {
		switch kind {
		case Created:
			c.metrics.Created.Inc()
		default:
			c.metrics.Updated.Inc()
		}
		c.metrics.Live.Set(float64(live))
	}
	if kind == Created {
		c.log.Debug("event created", logger.String("event", ev.String()))
	}
	c.publish(kind, ev)
	return kind
}

// Prune drops every entry whose end row has left the retained window, that is
// EndRow <= textureRow - height. It runs once per canvas insert and returns the number
// of entries removed.
func (c *Correlator) Prune(textureRow int64, height int) int {
	limit := textureRow - int64(height)

	c.mu.Lock()
	var removed []Event
	kept := c.entries[:0]
	for _, ev := range c.entries {
		if ev.EndRow <= limit {
			removed = append(removed, ev)
			continue
		}
		kept = append(kept, ev)
	}
	if len(removed) > 0 {
		clear(c.entries[len(kept):])
		c.entries = kept
		clear(c.index)
		for i, ev := range c.entries {
			c.index[ev.Key()] = i
		}
	}
	live := len(c.entries)
	c.mu.Unlock()

	if len(removed) == 0 {
		return 0
	}
	if c.metrics != nil {
		c.metrics.Pruned.Add(float64(len(removed)))
		c.metrics.Live.Set(float64(live))
	}
	for _, ev := range removed {
		c.publish(Pruned, ev)
	}
	return len(removed)
}

func (c *Correlator) publish(kind Lifecycle, ev Event) {
	if c.publisher == nil {
		return
	}
	c.publisher.TryPublish(Notification{Kind: kind, Event: ev, At: c.now()})
}

// Len is the number of live entries
func (c *Correlator) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Get returns the live entry for key
func (c *Correlator) Get(key Key) (Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[key]
	if !ok {
		return Event{}, false
	}
	return c.entries[i], true
}

// Snapshot returns a copy of the live entries in insertion order
func (c *Correlator) Snapshot() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Event, len(c.entries))
	copy(out, c.entries)
	return out
}
