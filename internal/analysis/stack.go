// Package analysis assembles a session with its outer services: metrics, persistence,
// MQTT publishing and ingestion, and the HTTP API.
package analysis

import (
	"context"
	"os"

	"github.com/MLAB-project/pysdr/internal/api"
	"github.com/MLAB-project/pysdr/internal/conf"
	"github.com/MLAB-project/pysdr/internal/datastore"
	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/ingest"
	"github.com/MLAB-project/pysdr/internal/logger"
	"github.com/MLAB-project/pysdr/internal/mqtt"
	"github.com/MLAB-project/pysdr/internal/observability"
	"github.com/MLAB-project/pysdr/internal/runtime"
	"github.com/MLAB-project/pysdr/internal/source"
)

// stack holds the long-lived resources shared by a session and its services
type stack struct {
	settings *conf.Settings
	metrics  *observability.Metrics
	store    datastore.Interface
	mqtt     mqtt.Client
	log      logger.Logger
}

// newStack opens the datastore and connects to the broker when enabled. A broker that is
// down at startup is logged; the client keeps retrying in the background.
func newStack(ctx context.Context, settings *conf.Settings) (*stack, error) {
	st := &stack{settings: settings, log: GetLogger()}

	var err error
	if st.metrics, err = observability.NewMetrics(); err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Context("operation", "create_metrics").
			Build()
	}

	if settings.Datastore.Enabled {
		store, err := datastore.New(&settings.Datastore, st.metrics.Datastore)
		if err != nil {
			return nil, err
		}
		if err := store.Open(); err != nil {
			return nil, err
		}
		st.store = store
	}

	if settings.MQTT.Enabled {
		st.mqtt = mqtt.NewClient(mqtt.ConfigFromSettings(settings), st.metrics.MQTT)
		if err := st.mqtt.Connect(ctx); err != nil {
			st.log.Warn("MQTT broker unavailable, will retry", logger.Error(err))
		}
	}
	return st, nil
}

// sessionOptions wires the stack's sinks into a session
func (st *stack) sessionOptions() []runtime.Option {
	opts := []runtime.Option{runtime.WithMetrics(st.metrics)}
	if st.mqtt != nil {
		opts = append(opts, runtime.WithMQTT(st.mqtt, st.settings.MQTT.Topic))
	}
	if st.store != nil {
		opts = append(opts, runtime.WithDataStore(st.store))
	}
	return opts
}

// services builds the API server and ingestion loops for s
func (st *stack) services(s *runtime.Session) ([]runtime.Service, error) {
	var svcs []runtime.Service

	if st.settings.WebServer.Enabled {
		srv, err := st.apiServer(s)
		if err != nil {
			return nil, err
		}
		svcs = append(svcs, srv.Run)
	}

	ing := st.settings.Ingest
	if !ing.SysEx.Enabled && !ing.MQTT.Enabled {
		return svcs, nil
	}
	in, err := ingest.NewIngester(ingest.Geometry{
		Bins:       s.Bins(),
		Overlap:    st.settings.OverlapBins(),
		SampleRate: s.Source().SampleRate(),
	}, s.Correlator(), ingest.WithMetrics(st.metrics.Events))
	if err != nil {
		return nil, err
	}

	if ing.SysEx.Enabled {
		svcs = append(svcs, func(ctx context.Context) error {
			return runSysEx(ctx, in, ing.SysEx.Path)
		})
	}
	if ing.MQTT.Enabled {
		if st.mqtt == nil {
			return nil, errors.Newf("mqtt ingest needs the mqtt broker section enabled").
				Component("analysis").
				Category(errors.CategoryConfiguration).
				Build()
		}
		if err := in.SubscribeMQTT(st.mqtt, ing.MQTT.Topic); err != nil {
			return nil, err
		}
		st.log.Info("subscribed to ingest topic", logger.String("topic", ing.MQTT.Topic))
	}
	return svcs, nil
}

func (st *stack) apiServer(s *runtime.Session) (*api.Server, error) {
	rate := s.Source().SampleRate()
	opts := []api.ServerOption{
		api.WithSession(api.SessionInfo{
			ID:          s.ID(),
			Source:      s.Source().Name(),
			SampleRate:  rate,
			Bins:        s.Bins(),
			Overlap:     st.settings.OverlapBins(),
			RowDuration: s.RowDuration(),
			CanvasRows:  s.Canvas().Height(),
		}, s.Clock(), s.Bin2Freq),
		api.WithEvents(s.Correlator()),
		api.WithDetectors(s.Engine()),
		api.WithWaterfall(s),
		api.WithMetrics(st.metrics),
	}
	if st.store != nil {
		opts = append(opts, api.WithDataStore(st.store))
	}
	return api.New(api.ConfigFromSettings(st.settings), opts...)
}

// runSysEx reads frames from path, or stdin for "-"
func runSysEx(ctx context.Context, in *ingest.Ingester, path string) error {
	if path == "" || path == "-" {
		return in.RunSysEx(ctx, os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("operation", "open_sysex_input").
			Context("path", path).
			Build()
	}
	defer f.Close()
	return in.RunSysEx(ctx, f)
}

// close disconnects the broker and closes the datastore
func (st *stack) close() {
	if st.mqtt != nil {
		st.mqtt.Disconnect()
	}
	if st.store != nil {
		if err := st.store.Close(); err != nil {
			st.log.Warn("datastore close failed", logger.Error(err))
		}
	}
}

// newSession creates the configured source and a session over it
func (st *stack) newSession(ctx context.Context, extra ...runtime.Option) (*runtime.Session, error) {
	src, err := source.New(st.settings)
	if err != nil {
		return nil, err
	}
	return runtime.NewSession(ctx, st.settings, src, append(st.sessionOptions(), extra...)...)
}

// GetLogger returns the analysis logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("analysis")
}
