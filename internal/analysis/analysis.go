package analysis

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MLAB-project/pysdr/internal/conf"
	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/events"
	"github.com/MLAB-project/pysdr/internal/logger"
	"github.com/MLAB-project/pysdr/internal/runtime"
)

// default snapshot size when the canvas is written at the end of a replay
const (
	snapshotWidth  = 1024
	snapshotHeight = 1024
)

// Live runs the waterfall over the configured source until render returns or ctx ends
func Live(ctx context.Context, settings *conf.Settings, render runtime.RenderFunc) error {
	st, err := newStack(ctx, settings)
	if err != nil {
		return err
	}
	defer st.close()

	s, err := st.newSession(ctx)
	if err != nil {
		return err
	}
	defer closeSession(s)

	svcs, err := st.services(s)
	if err != nil {
		return err
	}
	return s.Run(ctx, render, svcs...)
}

// ReplayResult summarizes a replay run
type ReplayResult struct {
	SessionID string
	Source    string
	Rows      uint64
	Dropped   uint64
	Clock     events.RowClock
	// Events are the finalized events in the order they completed
	Events   []events.Event
	Bin2Freq func(bin int) float64
	Snapshot string
}

// finalCollector keeps every event that reached its final state
type finalCollector struct {
	mu   sync.Mutex
	done []events.Event
}

func (c *finalCollector) Name() string { return "replay" }

func (c *finalCollector) Process(n events.Notification) error {
	if n.Kind == events.Finalized || (n.Kind == events.Created && n.Event.Final) {
		c.mu.Lock()
		c.done = append(c.done, n.Event)
		c.mu.Unlock()
	}
	return nil
}

func (c *finalCollector) events() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event(nil), c.done...)
}

// Replay runs the configured source to its end without a display. The canvas is drained
// as fast as rows arrive and, when a snapshot path is set, written as PNG at the end.
func Replay(ctx context.Context, settings *conf.Settings) (*ReplayResult, error) {
	st, err := newStack(ctx, settings)
	if err != nil {
		return nil, err
	}
	defer st.close()

	collector := &finalCollector{}
	s, err := st.newSession(ctx, runtime.WithConsumers(collector))
	if err != nil {
		return nil, err
	}

	svcs, err := st.services(s)
	if err != nil {
		closeSession(s)
		return nil, err
	}

	started := time.Now()
	runErr := s.Run(ctx, runtime.Headless(time.Millisecond), svcs...)

	res := &ReplayResult{
		SessionID: s.ID(),
		Source:    s.Source().Name(),
		Rows:      s.TextureRow(),
		Dropped:   s.QueueStats().Dropped,
		Clock:     s.Clock(),
		Bin2Freq:  s.Bin2Freq,
	}
	if runErr == nil && settings.Display.Snapshot != "" {
		if err := writeSnapshot(s, settings.Display.Snapshot); err != nil {
			runErr = err
		} else {
			res.Snapshot = settings.Display.Snapshot
		}
	}

	// Close waits for the bus, so every finalization is collected
	closeSession(s)
	res.Events = collector.events()

	GetLogger().Info("replay finished",
		logger.String("session", res.SessionID),
		logger.Uint64("rows", res.Rows),
		logger.Int("events", len(res.Events)),
		logger.Duration("elapsed", time.Since(started)))
	return res, runErr
}

func writeSnapshot(s *runtime.Session, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return snapshotError(err, path)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return snapshotError(err, path)
	}
	if err := s.WritePNG(f, snapshotWidth, snapshotHeight); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return snapshotError(err, path)
	}
	return nil
}

func snapshotError(err error, path string) error {
	return errors.New(err).
		Component("analysis").
		Category(errors.CategoryFileIO).
		Context("operation", "write_snapshot").
		Context("path", path).
		Build()
}

func closeSession(s *runtime.Session) {
	if err := s.Close(); err != nil {
		GetLogger().Warn("session close failed", logger.Error(err))
	}
}
