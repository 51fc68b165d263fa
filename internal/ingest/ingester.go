package ingest

import (
	"context"
	"hash/fnv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/events"
	"github.com/MLAB-project/pysdr/internal/logger"
	"github.com/MLAB-project/pysdr/internal/mqtt"
	"github.com/MLAB-project/pysdr/internal/observability/metrics"
)

// DefaultDedupeWindow suppresses redelivered identical messages
const DefaultDedupeWindow = 30 * time.Second

// expired entries are swept once the cache holds more than this many keys
const dedupeSweepThreshold = 1024

// Ingester validates messages and upserts them into the event sink
type Ingester struct {
	geom    Geometry
	sink    events.Sink
	seen    *cache.Cache
	metrics *metrics.EventMetrics
	log     logger.Logger
}

// Option configures an Ingester
type Option func(*Ingester)

// WithMetrics counts messages by transport and outcome
func WithMetrics(m *metrics.EventMetrics) Option {
	return func(in *Ingester) { in.metrics = m }
}

// WithLogger replaces the package logger
func WithLogger(l logger.Logger) Option {
	return func(in *Ingester) { in.log = l }
}

// WithDedupeWindow sets how long an identical message is suppressed
func WithDedupeWindow(d time.Duration) Option {
	return func(in *Ingester) { in.seen = cache.New(d, 0) }
}

// NewIngester creates an ingester placing events with geom
func NewIngester(geom Geometry, sink events.Sink, opts ...Option) (*Ingester, error) {
	if !geom.valid() {
		return nil, errors.Newf("invalid ingest geometry bins=%d overlap=%d rate=%d", geom.Bins, geom.Overlap, geom.SampleRate).
			Component("ingest").
			Category(errors.CategoryConfiguration).
			Build()
	}
	in := &Ingester{
		geom: geom,
		sink: sink,
		// no janitor goroutine; expired keys are swept from Handle
		seen: cache.New(DefaultDedupeWindow, 0),
		log:  GetLogger(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

func dedupeKey(msg Message) string {
	h := fnv.New64a()
	_, _ = h.Write(msg.Payload)
	return msg.Identity + "#" + strconv.FormatUint(h.Sum64(), 16)
}

func (in *Ingester) record(transport, status string) {
	if in.metrics != nil {
		in.metrics.RecordIngest(transport, status)
	}
}

// Handle processes one message. A malformed message is logged, counted and returned as an
// error; callers keep going.
func (in *Ingester) Handle(msg Message) error {
	ev, err := Parse(msg, in.geom)
	if err != nil {
		in.record(msg.Transport, metrics.StatusError)
		in.log.Warn("discarding malformed event message",
			logger.String("identity", msg.Identity),
			logger.String("transport", msg.Transport),
			logger.Error(err))
		return err
	}

	if in.seen.ItemCount() > dedupeSweepThreshold {
		in.seen.DeleteExpired()
	}
	if err := in.seen.Add(dedupeKey(msg), struct{}{}, cache.DefaultExpiration); err != nil {
		in.record(msg.Transport, metrics.StatusDropped)
		in.log.Debug("suppressed redelivered event message",
			logger.String("identity", msg.Identity),
			logger.String("transport", msg.Transport))
		return nil
	}

	kind := in.sink.Upsert(ev)
	in.record(msg.Transport, metrics.StatusSuccess)
	in.log.Debug("ingested event",
		logger.String("identity", ev.Identity),
		logger.String("transport", msg.Transport),
		logger.String("lifecycle", string(kind)),
		logger.Int64("start_row", ev.StartRow),
		logger.Int64("end_row", ev.EndRow))
	return nil
}

// RunSysEx reads SysEx frames from r until EOF or ctx ends. Framing and payload errors are
// skipped. If r is an io.Closer it is closed when ctx ends to unblock a pending read.
func (in *Ingester) RunSysEx(ctx context.Context, r io.Reader) error {
	done := make(chan struct{})
	defer close(done)
	if c, ok := r.(io.Closer); ok {
		go func() {
			select {
			case <-ctx.Done():
				_ = c.Close()
			case <-done:
			}
		}()
	}

	sr := NewSysExReader(r, DefaultMaxFrame)
	for {
		msg, err := sr.Next()
		switch {
		case err == nil:
			_ = in.Handle(msg)
		case errors.Is(err, ErrFraming):
			in.record(TransportSysEx, metrics.StatusError)
			in.log.Warn("discarding sysex frame", logger.Error(err))
		case errors.Is(err, io.EOF):
			in.log.Info("sysex stream ended")
			return nil
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.New(err).
				Component("ingest").
				Category(errors.CategoryEventIngest).
				Context("operation", "read_sysex").
				Build()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// SubscribeMQTT ingests messages published under prefix. The topic suffix after
// prefix is the event identity.
func (in *Ingester) SubscribeMQTT(c mqtt.Client, prefix string) error {
	prefix = strings.TrimSuffix(strings.TrimSuffix(prefix, "/#"), "/")
	return c.Subscribe(prefix+"/#", func(topic string, payload []byte) {
		_ = in.Handle(Message{
			Identity:  strings.TrimPrefix(strings.TrimPrefix(topic, prefix), "/"),
			Payload:   payload,
			Transport: TransportMQTT,
		})
	})
}
