package runtime

import (
	"context"
	"time"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/framequeue"
	"github.com/MLAB-project/pysdr/internal/logger"
	"github.com/MLAB-project/pysdr/internal/source"
	"github.com/MLAB-project/pysdr/internal/spectral"
)

// Produce reads the source until it ends, fails or ctx is cancelled. Each frame is shown
// to the detectors first, then colour-mapped and queued for display.
//
// A normal end of stream finalizes the live events and returns nil, as does cancellation.
// Any other error is fatal for the session and returned. Done is closed on return.
func (s *Session) Produce(ctx context.Context) error {
	defer close(s.produced)

	err := s.pipeline.Run(ctx, s.src, s.onFrame)
	switch {
	case source.IsEndOfStream(err):
		finalized := s.finalizeLive()
		s.log.Info("end of stream",
			logger.Uint64("rows", s.pipeline.NextRow()),
			logger.Int("finalized_events", finalized))
		err = nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		s.log.Debug("producer cancelled", logger.Uint64("rows", s.pipeline.NextRow()))
		err = nil
	default:
		if s.metrics != nil {
			s.metrics.Spectral.RecordSourceError(s.settings.Input.Kind)
		}
		s.log.Error("producer stopped", logger.Error(err))
	}
	s.prodErr = err
	return err
}

func (s *Session) onFrame(frame *spectral.Frame) error {
	start := time.Now()
	s.engine.OnFrame(frame)

	pixels := make([]uint32, len(frame.Log))
	s.scaler.Row(pixels, frame.Log)
	s.queue.Push(framequeue.Row{Index: frame.Row, Pixels: pixels, Log: frame.Log})

	if s.metrics != nil {
		s.metrics.Spectral.ObserveFrame(time.Since(start).Seconds())
	}
	return nil
}

// finalizeLive marks every open event final once no more rows will arrive
func (s *Session) finalizeLive() int {
	n := 0
	for _, ev := range s.correlator.Snapshot() {
		if ev.Final {
			continue
		}
		ev.Final = true
		s.correlator.Upsert(ev)
		n++
	}
	return n
}
