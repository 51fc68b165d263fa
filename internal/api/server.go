// Package api serves the HTTP status, metrics and event endpoints.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/MLAB-project/pysdr/internal/datastore"
	"github.com/MLAB-project/pysdr/internal/detector"
	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/events"
	"github.com/MLAB-project/pysdr/internal/logger"
	"github.com/MLAB-project/pysdr/internal/observability"
	"github.com/MLAB-project/pysdr/internal/observability/metrics"
)

// EventSource lists the live events
type EventSource interface {
	Snapshot() []events.Event
}

// DetectorSource reports detector health
type DetectorSource interface {
	Status() []detector.Status
}

// Waterfall renders the canvas
type Waterfall interface {
	WritePNG(w io.Writer, width, height int) error
	TextureRow() uint64
}

// SessionInfo describes the running session for the status endpoint
type SessionInfo struct {
	ID          string  `json:"id"`
	Source      string  `json:"source"`
	SampleRate  int     `json:"sample_rate"`
	Bins        int     `json:"bins"`
	Overlap     int     `json:"overlap"`
	RowDuration float64 `json:"row_duration_seconds"`
	CanvasRows  int     `json:"canvas_rows"`
}

// Server is the HTTP API server
type Server struct {
	echo   *echo.Echo
	config Config
	log    logger.Logger

	session   SessionInfo
	clock     events.RowClock
	bin2hz    func(bin int) float64
	events    EventSource
	detectors DetectorSource
	waterfall Waterfall
	store     datastore.Interface
	metrics   *observability.Metrics
	health    *healthProbe

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithSession sets the session description and the row and bin mappings used to render
// event times and frequencies.
func WithSession(info SessionInfo, clock events.RowClock, bin2hz func(bin int) float64) ServerOption {
	return func(s *Server) {
		s.session = info
		s.clock = clock
		s.bin2hz = bin2hz
	}
}

// WithEvents sets the live event source
func WithEvents(src EventSource) ServerOption {
	return func(s *Server) { s.events = src }
}

// WithDetectors sets the detector status source
func WithDetectors(src DetectorSource) ServerOption {
	return func(s *Server) { s.detectors = src }
}

// WithWaterfall sets the canvas renderer
func WithWaterfall(w Waterfall) ServerOption {
	return func(s *Server) { s.waterfall = w }
}

// WithDataStore enables the stored event history endpoint
func WithDataStore(ds datastore.Interface) ServerOption {
	return func(s *Server) { s.store = ds }
}

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithLogger replaces the package logger
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// New creates a new HTTP server with the given configuration and options.
func New(cfg Config, opts ...ServerOption) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config:    cfg,
		log:       GetLogger(),
		bin2hz:    func(bin int) float64 { return float64(bin) },
		health:    newHealthProbe(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = cfg.ReadTimeout
	s.echo.Server.WriteTimeout = cfg.WriteTimeout
	s.echo.Server.IdleTimeout = cfg.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// Echo exposes the router, for tests
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(newRequestLogger(s.log))
	if s.metrics != nil {
		s.echo.Use(newRequestMetrics(s.metrics.HTTP))
	}
}

func (s *Server) setupRoutes() {
	s.echo.GET("/healthz", s.healthCheck)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.getStatus)
	v1.GET("/events", s.getEvents)
	v1.GET("/events/history", s.getEventHistory)
	v1.GET("/detectors", s.getDetectors)
	v1.GET("/waterfall.png", s.getWaterfall)
}

// Run serves until ctx ends, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.config.Listen)
	}()
	s.log.Info("HTTP server starting", logger.String("address", s.config.Listen))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.New(err).
			Component("api").
			Category(errors.CategoryHTTP).
			Context("operation", "listen").
			Context("address", s.config.Listen).
			Build()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), metrics.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("HTTP server shutdown incomplete", logger.Error(err))
	}
	<-errCh
	s.log.Info("HTTP server stopped")
	return nil
}

// GetLogger returns the api logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}
