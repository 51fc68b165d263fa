package runtime

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/MLAB-project/pysdr/internal/detector"
	"github.com/MLAB-project/pysdr/internal/events"
	"github.com/MLAB-project/pysdr/internal/framequeue"
	"github.com/MLAB-project/pysdr/internal/logger"
)

// Tick drains queued rows into the canvas and redraws it. Only the render context calls
// it. While paused nothing is drained, so the queue fills and sheds its oldest rows.
func (s *Session) Tick() (int, error) {
	if s.paused.Load() {
		return 0, nil
	}

	start := time.Now()
	var insertErr error
	n := s.queue.Drain(s.drainLimit, func(r framequeue.Row) {
		if insertErr != nil {
			return
		}
		if err := s.canvas.Insert(r.Index, r.Pixels); err != nil {
			insertErr = err
			return
		}
		s.lastLog.Store(&r.Log)
	})
	if insertErr != nil {
		return n, insertErr
	}
	if n > 0 && s.metrics != nil {
		s.metrics.Render.DrainDuration.Observe(time.Since(start).Seconds())
	}
	return n, s.canvas.DrawScroll()
}

// SetPaused stops or resumes draining
func (s *Session) SetPaused(paused bool) {
	if s.paused.Swap(paused) != paused {
		s.log.Info("display pause changed", logger.Bool("paused", paused))
	}
}

// Paused reports whether draining is stopped
func (s *Session) Paused() bool { return s.paused.Load() }

// LastFrame returns the log-magnitude frame of the newest displayed row, or nil
func (s *Session) LastFrame() []float32 {
	if p := s.lastLog.Load(); p != nil {
		return *p
	}
	return nil
}

// TextureRow is the index of the next row the canvas will take
func (s *Session) TextureRow() uint64 { return s.canvas.TextureRow() }

// Render composes the canvas into a width × height image
func (s *Session) Render(width, height int) *image.RGBA {
	return s.backend.Render(s.canvas.Quads(), width, height)
}

// WritePNG writes a width × height snapshot of the canvas
func (s *Session) WritePNG(w io.Writer, width, height int) error {
	return s.backend.WritePNG(w, s.canvas.Quads(), width, height)
}

// Markers maps the live events to screen rectangles
func (s *Session) Markers() []events.Marker { return s.correlator.Visible(s.canvas) }

// Plots lists the detector plot series
func (s *Session) Plots() []detector.Plot { return s.engine.Plots() }

// Headless returns a render context that ticks every interval without drawing anywhere.
// Once the producer has stopped it drains what is left and returns.
func Headless(interval time.Duration) RenderFunc {
	return func(ctx context.Context, s *Session) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-s.Done():
				for {
					n, err := s.Tick()
					if err != nil {
						return err
					}
					if n == 0 {
						return nil
					}
				}
			case <-ticker.C:
				if _, err := s.Tick(); err != nil {
					return err
				}
			}
		}
	}
}
