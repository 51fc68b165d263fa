// Package detector runs analysis scripts against every spectral frame.
//
// Detectors are compiled Go types registered by kind. Each one sees the stream only
// through its API: frame geometry, bin/frequency conversion, the peak and noise helpers,
// plot series and event emission. State lives in the detector value and is dropped when
// the detector is detached or disabled.
//
// The engine runs detectors synchronously on the producer goroutine, so a slow detector
// delays the next frame. That keeps frames strictly ordered for every detector.
package detector

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/events"
	"github.com/MLAB-project/pysdr/internal/logger"
	"github.com/MLAB-project/pysdr/internal/observability/metrics"
	"github.com/MLAB-project/pysdr/internal/spectral"
)

// Config is the stream geometry shared by every detector
type Config struct {
	Bins         int
	Overlap      int
	SampleRate   int
	PlotCapacity int // rows kept per plot series, normally the canvas height
}

// Status describes one attached detector
type Status struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
	Frames  uint64 `json:"frames"`
	Fault   string `json:"fault,omitempty"`
}

// Plot is one series together with the detector that owns it
type Plot struct {
	Detector string
	Series   *Series
}

type slot struct {
	name string
	kind string
	api  *API

	enabled atomic.Bool
	frames  atomic.Uint64

	mu    sync.Mutex
	det   Detector
	fault error
}

// Engine owns the attached detectors
type Engine struct {
	cfg         Config
	rowDuration float64
	sink        events.Sink

	mu    sync.RWMutex
	slots []*slot

	metrics *metrics.DetectorMetrics
	log     logger.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithMetrics reports run time, faults and emitted events per detector
func WithMetrics(m *metrics.DetectorMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger overrides the package logger
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine that forwards detector events to sink
func NewEngine(cfg Config, sink events.Sink, opts ...Option) (*Engine, error) {
	if cfg.Bins <= 0 || cfg.SampleRate <= 0 || cfg.Overlap < 0 || cfg.Overlap >= cfg.Bins {
		return nil, errors.Newf("invalid detector geometry: bins %d, overlap %d, rate %d", cfg.Bins, cfg.Overlap, cfg.SampleRate).
			Component("detector").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.PlotCapacity <= 0 {
		cfg.PlotCapacity = 1024
	}

	e := &Engine{
		cfg:         cfg,
		rowDuration: float64(cfg.Bins-cfg.Overlap) / float64(cfg.SampleRate),
		sink:        sink,
		log:         GetLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RowDuration is the time step between frames in seconds
func (e *Engine) RowDuration() float64 { return e.rowDuration }

// Attach builds a registered detector kind under name
func (e *Engine) Attach(name, kind string, params Params) error {
	reg, err := lookup(kind)
	if err != nil {
		return err
	}
	merged, err := resolve(kind, reg.defaults, params)
	if err != nil {
		return err
	}
	return e.AttachFunc(name, kind, reg.factory, merged)
}

// AttachFunc builds a detector from factory without going through the registry
func (e *Engine) AttachFunc(name, kind string, factory Factory, params Params) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range e.slots {
		if s.name == name {
			return errors.Newf("detector %q is already attached", name).
				Component("detector").
				Category(errors.CategoryState).
				Build()
		}
	}

	s := &slot{name: name, kind: kind}
	s.api = &API{
		name:        name,
		bins:        e.cfg.Bins,
		sampleRate:  e.cfg.SampleRate,
		rowDuration: e.rowDuration,
		plots:       newPlotSet(e.cfg.PlotCapacity),
		sink:        e.sink,
	}
	if e.metrics != nil {
		m := e.metrics
		s.api.onEmit = func() { m.RecordEvent(name) }
	}

	det, err := factory(s.api, params)
	if err != nil {
		return errors.New(err).
			Component("detector").
			Category(errors.CategoryConfiguration).
			Context("detector", name).
			Context("kind", kind).
			Build()
	}
	s.det = det
	s.enabled.Store(true)
	e.slots = append(e.slots, s)

	if e.metrics != nil {
		e.metrics.SetEnabled(name)
	}
	e.log.Info("detector attached",
		logger.String("detector", name),
		logger.String("kind", kind),
		logger.Any("params", params))
	return nil
}

// Detach removes a detector and drops its state
func (e *Engine) Detach(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.slots {
		if s.name == name {
			s.enabled.Store(false)
			s.mu.Lock()
			s.det = nil
			s.mu.Unlock()
			// OnFrame may still be iterating the old slice
			e.slots = append(slices.Clone(e.slots[:i]), e.slots[i+1:]...)
			return true
		}
	}
	return false
}

// OnFrame runs every enabled detector on frame, in attach order
func (e *Engine) OnFrame(frame *spectral.Frame) {
	e.mu.RLock()
	slots := e.slots
	e.mu.RUnlock()

	row := int64(frame.Row)
	for _, s := range slots {
		if !s.enabled.Load() {
			continue
		}
		start := time.Now()
		if err := e.run(s, row, frame); err != nil {
			e.disable(s, row, err)
			continue
		}
		s.frames.Add(1)
		if e.metrics != nil {
			e.metrics.RecordRun(s.name, time.Since(start).Seconds())
		}
	}
}

// run calls the detector with panics turned into errors
func (e *Engine) run(s *slot, row int64, frame *spectral.Frame) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.det == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	s.api.row = row
	return s.det.Run(row, frame)
}

// disable stops a faulted detector for good and reports the fault once
func (e *Engine) disable(s *slot, row int64, cause error) {
	if !s.enabled.CompareAndSwap(true, false) {
		return
	}
	err := errors.New(cause).
		Component("detector").
		Category(errors.CategoryDetector).
		Context("detector", s.name).
		Context("kind", s.kind).
		Context("row", row).
		Build()

	s.mu.Lock()
	s.det = nil
	s.fault = err
	s.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordFault(s.name)
	}
	e.log.Error("detector disabled after fault",
		logger.String("detector", s.name),
		logger.Int64("row", row),
		logger.Error(cause))
}

// Status lists the attached detectors in attach order
func (e *Engine) Status() []Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Status, 0, len(e.slots))
	for _, s := range e.slots {
		st := Status{
			Name:    s.name,
			Kind:    s.kind,
			Enabled: s.enabled.Load(),
			Frames:  s.frames.Load(),
		}
		s.mu.Lock()
		if s.fault != nil {
			st.Fault = s.fault.Error()
		}
		s.mu.Unlock()
		out = append(out, st)
	}
	return out
}

// Plots lists every plot series of every attached detector, disabled ones included
func (e *Engine) Plots() []Plot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Plot
	for _, s := range e.slots {
		for _, series := range s.api.plots.list() {
			out = append(out, Plot{Detector: s.name, Series: series})
		}
	}
	return out
}
