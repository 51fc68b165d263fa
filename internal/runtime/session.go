// Package runtime wires one processing session together.
//
// A Session owns the sample source and every stage behind it: the spectral pipeline and
// detector engine run on the producer goroutine, colour-mapped rows cross the frame queue,
// and the render context drains them into the tile canvas. Event changes flow from the
// correlator onto the bus and out to the log, MQTT and datastore consumers.
package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MLAB-project/pysdr/internal/canvas"
	"github.com/MLAB-project/pysdr/internal/colormap"
	"github.com/MLAB-project/pysdr/internal/conf"
	"github.com/MLAB-project/pysdr/internal/cpuspec"
	"github.com/MLAB-project/pysdr/internal/datastore"
	"github.com/MLAB-project/pysdr/internal/detector"
	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/events"
	"github.com/MLAB-project/pysdr/internal/framequeue"
	"github.com/MLAB-project/pysdr/internal/logger"
	"github.com/MLAB-project/pysdr/internal/mqtt"
	"github.com/MLAB-project/pysdr/internal/observability"
	"github.com/MLAB-project/pysdr/internal/observability/metrics"
	"github.com/MLAB-project/pysdr/internal/source"
	"github.com/MLAB-project/pysdr/internal/spectral"
)

// busShutdownTimeout bounds the wait for consumers to drain on Close
const busShutdownTimeout = 5 * time.Second

// Session is one run of the waterfall over a single source
type Session struct {
	id       string
	settings *conf.Settings
	src      source.Source
	clock    events.RowClock

	pipeline   *spectral.Pipeline
	engine     *detector.Engine
	correlator *events.Correlator
	bus        *events.Bus
	queue      *framequeue.Queue
	canvas     *canvas.Canvas
	backend    *canvas.MemoryBackend
	scaler     *colormap.Scaler

	metrics    *observability.Metrics
	mqttClient mqtt.Client
	mqttTopic  string
	store      datastore.Interface
	consumers  []events.Consumer
	log        logger.Logger

	drainLimit int
	paused     atomic.Bool
	lastLog    atomic.Pointer[[]float32]
	produced   chan struct{}
	prodErr    error
	closeOnce  sync.Once
}

// Option configures a Session
type Option func(*Session)

// WithMetrics records pipeline, render, detector and event metrics into m
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithLogger overrides the package logger
func WithLogger(l logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithMQTT publishes event lifecycle changes through c under topic
func WithMQTT(c mqtt.Client, topic string) Option {
	return func(s *Session) {
		s.mqttClient = c
		s.mqttTopic = topic
	}
}

// WithDataStore persists events into ds
func WithDataStore(ds datastore.Interface) Option {
	return func(s *Session) { s.store = ds }
}

// WithConsumers registers extra event consumers on the bus
func WithConsumers(cs ...events.Consumer) Option {
	return func(s *Session) { s.consumers = append(s.consumers, cs...) }
}

// NewSession starts src and builds the stages sized for its sample rate. The session owns
// src from here on and closes it in Close, also when construction fails.
func NewSession(ctx context.Context, settings *conf.Settings, src source.Source, opts ...Option) (*Session, error) {
	s := &Session{
		id:         uuid.NewString(),
		settings:   settings,
		src:        src,
		log:        GetLogger(),
		drainLimit: settings.Display.DrainLimit,
		produced:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.drainLimit <= 0 {
		s.drainLimit = framequeue.DefaultDrainLimit
	}
	s.log = s.log.With(logger.String("session", s.id))

	if err := src.Start(ctx); err != nil {
		_ = src.Close()
		return nil, err
	}
	if err := s.build(); err != nil {
		_ = src.Close()
		return nil, err
	}

	s.log.Info("session started",
		logger.String("source", src.Name()),
		logger.Int("sample_rate", src.SampleRate()),
		logger.Int("bins", s.pipeline.Bins()),
		logger.Int("overlap", s.pipeline.Overlap()),
		logger.Float64("row_duration", s.pipeline.RowDuration()),
		logger.Int("canvas_rows", s.canvas.Height()))
	return s, nil
}

func (s *Session) build() error {
	st := s.settings
	rate := s.src.SampleRate()
	if rate <= 0 {
		return errors.Newf("source %s reports sample rate %d", s.src.Name(), rate).
			Component("runtime").
			Category(errors.CategoryConfiguration).
			Build()
	}

	var (
		rm *metrics.RenderMetrics
		dm *metrics.DetectorMetrics
		em *metrics.EventMetrics
	)
	if s.metrics != nil {
		rm, dm, em = s.metrics.Render, s.metrics.Detector, s.metrics.Events
		s.metrics.Spectral.SampleRate.Set(float64(rate))
		if d, ok := s.src.(interface{ OnDrop(func()) }); ok {
			d.OnDrop(s.metrics.Spectral.SourceOverruns.Inc)
		}
	}

	var err error
	s.pipeline, err = spectral.New(spectral.Config{
		Bins:       st.Spectral.Bins,
		Overlap:    st.OverlapBins(),
		TileWidth:  st.Spectral.TileWidth,
		LogScale:   st.Spectral.LogScale,
		SampleRate: rate,
	})
	if err != nil {
		return err
	}
	s.clock = events.RowClock{Start: time.Now(), RowDuration: s.pipeline.RowDuration()}

	rows := st.CanvasRows(rate)
	tileHeight := st.Spectral.TileHeight
	if tileHeight <= 0 {
		tileHeight = rows
	}
	s.backend = canvas.NewMemoryBackend()
	s.canvas, err = canvas.New(canvas.ConfigFor(st.Spectral.Bins, rows, st.Spectral.TileWidth, tileHeight), s.backend, canvas.WithMetrics(rm))
	if err != nil {
		return err
	}
	s.queue = framequeue.New(st.Display.QueueCapacity, framequeue.WithMetrics(rm))
	s.scaler = colormap.NewScaler(st.Display.MagLo, st.Display.MagHi)

	busCfg := events.DefaultBusConfig()
	if st.Events.BufferSize > 0 {
		busCfg.BufferSize = st.Events.BufferSize
	}
	busCfg.Workers = st.Events.Workers
	if busCfg.Workers <= 0 {
		busCfg.Workers = cpuspec.GetCPUSpec().BusWorkers()
	}
	s.bus = events.NewBus(busCfg, events.WithBusMetrics(em))
	s.correlator = events.NewCorrelator(events.WithPublisher(s.bus), events.WithCorrelatorMetrics(em))
	s.canvas.OnInsert(func(textureRow uint64) {
		s.correlator.Prune(int64(textureRow), s.canvas.Height())
	})

	s.engine, err = detector.NewEngine(detector.Config{
		Bins:         st.Spectral.Bins,
		Overlap:      st.OverlapBins(),
		SampleRate:   rate,
		PlotCapacity: rows,
	}, s.correlator, detector.WithMetrics(dm))
	if err != nil {
		return err
	}
	for _, d := range st.Detectors {
		if !d.Enabled {
			continue
		}
		if err := s.engine.Attach(d.Name, d.Kind, detector.Params(d.Params)); err != nil {
			return err
		}
	}

	return s.registerConsumers()
}

func (s *Session) registerConsumers() error {
	consumers := []events.Consumer{events.NewLogConsumer(s.clock, nil)}
	if s.mqttClient != nil {
		consumers = append(consumers, mqtt.NewPublisher(s.mqttClient, s.mqttTopic, s.id, s.clock, s.Bin2Freq))
	}
	if s.store != nil {
		consumers = append(consumers, datastore.NewWriter(s.store, s.id, s.clock, s.Bin2Freq))
	}
	consumers = append(consumers, s.consumers...)
	for _, c := range consumers {
		if err := s.bus.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ID is the session's unique identifier
func (s *Session) ID() string { return s.id }

// Source returns the sample source
func (s *Session) Source() source.Source { return s.src }

// Clock maps rows to wall time for this session
func (s *Session) Clock() events.RowClock { return s.clock }

// Bins is the frame length
func (s *Session) Bins() int { return s.pipeline.Bins() }

// RowDuration is the time step between rows in seconds
func (s *Session) RowDuration() float64 { return s.pipeline.RowDuration() }

// Bin2Freq maps a bin of the fftshifted frame to its baseband frequency in Hz
func (s *Session) Bin2Freq(bin int) float64 {
	return float64(bin-s.pipeline.Bins()/2) / float64(s.pipeline.Bins()) * float64(s.pipeline.SampleRate())
}

// Correlator is the live event set
func (s *Session) Correlator() *events.Correlator { return s.correlator }

// Engine is the detector engine
func (s *Session) Engine() *detector.Engine { return s.engine }

// Canvas is the tile ring
func (s *Session) Canvas() *canvas.Canvas { return s.canvas }

// Scaler is the colour mapping of new rows
func (s *Session) Scaler() *colormap.Scaler { return s.scaler }

// QueueStats reports the frame queue counters
func (s *Session) QueueStats() framequeue.Stats { return s.queue.Stats() }

// BusStats reports the event bus counters
func (s *Session) BusStats() events.BusStats { return s.bus.Stats() }

// Done is closed once the producer has stopped
func (s *Session) Done() <-chan struct{} { return s.produced }

// Err is the producer's terminal error; nil for a normal end of stream. Valid after Done.
func (s *Session) Err() error {
	<-s.produced
	return s.prodErr
}

// Close stops the event bus, waiting for queued notifications, and closes the source
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if berr := s.bus.Shutdown(busShutdownTimeout); berr != nil {
			err = berr
		}
		if cerr := s.src.Close(); cerr != nil && err == nil {
			err = cerr
		}
		s.log.Info("session closed", logger.Uint64("rows", s.canvas.TextureRow()))
	})
	return err
}

// GetLogger returns the runtime logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("runtime")
}
