package events

import (
	"time"

	"github.com/MLAB-project/pysdr/internal/logger"
)

// RowClock converts row indices to wall time for one session
type RowClock struct {
	Start       time.Time // wall time of row 0
	RowDuration float64   // seconds per row
}

// Time returns the wall time at the start of row
func (rc RowClock) Time(row int64) time.Time {
	return rc.Start.Add(time.Duration(float64(row) * rc.RowDuration * float64(time.Second)))
}

// Span returns the wall-time interval covered by ev
func (rc RowClock) Span(ev Event) (start, end time.Time) {
	return rc.Time(ev.StartRow), rc.Time(ev.EndRow)
}

// LogConsumer writes every lifecycle change to the event log
type LogConsumer struct {
	clock RowClock
	log   logger.Logger
}

// NewLogConsumer creates a consumer logging through l, or the package logger when l is nil
func NewLogConsumer(clock RowClock, l logger.Logger) *LogConsumer {
	if l == nil {
		l = GetLogger()
	}
	return &LogConsumer{clock: clock, log: l}
}

// Name implements Consumer
func (c *LogConsumer) Name() string { return "log" }

// Process implements Consumer
func (c *LogConsumer) Process(n Notification) error {
	start, end := c.clock.Span(n.Event)
	fields := []logger.Field{
		logger.String("kind", string(n.Kind)),
		logger.String("identity", n.Event.Identity),
		logger.Int64("start_row", n.Event.StartRow),
		logger.Int64("end_row", n.Event.EndRow),
		logger.Int("bin_lo", n.Event.BinLo),
		logger.Int("bin_hi", n.Event.BinHi),
		logger.String("description", n.Event.Description),
		logger.Time("start", start),
		logger.Duration("length", end.Sub(start)),
	}
	switch n.Kind {
	case Created, Finalized:
		c.log.Info("event "+string(n.Kind), fields...)
	default:
		c.log.Debug("event "+string(n.Kind), fields...)
	}
	return nil
}

// FuncConsumer adapts a function to Consumer
type FuncConsumer struct {
	name string
	fn   func(Notification) error
}

// NewFuncConsumer wraps fn under name
func NewFuncConsumer(name string, fn func(Notification) error) *FuncConsumer {
	return &FuncConsumer{name: name, fn: fn}
}

// Name implements Consumer
func (c *FuncConsumer) Name() string { return c.name }

// Process implements Consumer
func (c *FuncConsumer) Process(n Notification) error { return c.fn(n) }
