package datastore

import (
	"context"
	"time"

	"github.com/MLAB-project/pysdr/internal/events"
)

// writeTimeout bounds one SaveEvent call from the bus
const writeTimeout = 5 * time.Second

// Writer is an events.Consumer that keeps the store in step with the correlator.
// Created, updated and finalized occurrences are upserted; pruning is not persisted.
type Writer struct {
	store   Interface
	session string
	clock   events.RowClock
	bin2hz  func(bin int) float64
}

// NewWriter creates a writer recording events for one session
func NewWriter(store Interface, session string, clock events.RowClock, bin2hz func(bin int) float64) *Writer {
	return &Writer{store: store, session: session, clock: clock, bin2hz: bin2hz}
}

// Name implements events.Consumer
func (w *Writer) Name() string { return "datastore" }

// Record converts ev into its stored form
func (w *Writer) Record(ev events.Event) *EventRecord {
	begin, end := w.clock.Span(ev)
	return &EventRecord{
		Session:     w.session,
		Identity:    ev.Identity,
		StartRow:    ev.StartRow,
		EndRow:      ev.EndRow,
		BeginTime:   begin.UTC(),
		EndTime:     end.UTC(),
		FreqLo:      w.bin2hz(ev.BinLo),
		FreqHi:      w.bin2hz(ev.BinHi),
		Description: ev.Description,
		Source:      ev.Source,
		Final:       ev.Final,
	}
}

// Process implements events.Consumer
func (w *Writer) Process(n events.Notification) error {
	if n.Kind == events.Pruned {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return w.store.SaveEvent(ctx, w.Record(n.Event))
}
