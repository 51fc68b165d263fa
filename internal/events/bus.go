package events

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/logger"
	"github.com/MLAB-project/pysdr/internal/observability/metrics"
)

// BusConfig holds event bus configuration
type BusConfig struct {
	BufferSize int
	Workers    int
}

// DefaultBusConfig returns the default event bus configuration
func DefaultBusConfig() BusConfig {
	return BusConfig{
		BufferSize: 1000,
		Workers:    2,
	}
}

// Bus delivers notifications to consumers asynchronously. Notifications for the same
// (identity, start row) always land on the same worker, so each consumer sees one event's
// lifecycle in order.
type Bus struct {
	shards []chan Notification

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	mu      sync.Mutex

	consumers []Consumer

	received       atomic.Uint64
	processed      atomic.Uint64
	dropped        atomic.Uint64
	consumerErrors atomic.Uint64

	metrics *metrics.EventMetrics
	log     logger.Logger
}

// BusOption configures a Bus
type BusOption func(*Bus)

// WithBusMetrics counts dropped notifications
func WithBusMetrics(m *metrics.EventMetrics) BusOption {
	return func(b *Bus) { b.metrics = m }
}

// WithBusLogger overrides the package logger
func WithBusLogger(l logger.Logger) BusOption {
	return func(b *Bus) { b.log = l }
}

// NewBus creates a bus. Workers start on the first Register call.
func NewBus(cfg BusConfig, opts ...BusOption) *Bus {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	perShard := max(cfg.BufferSize/cfg.Workers, 1)

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		shards: make([]chan Notification, cfg.Workers),
		ctx:    ctx,
		cancel: cancel,
		log:    GetLogger(),
	}
	for i := range b.shards {
		b.shards[i] = make(chan Notification, perShard)
	}
	for _, opt := range opts {
		opt(b)
	}

	b.log.Info("event bus initialized",
		logger.Int("buffer_size", perShard*cfg.Workers),
		logger.Int("workers", cfg.Workers))
	return b
}

// Register adds a consumer
func (b *Bus) Register(consumer Consumer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.consumers {
		if existing.Name() == consumer.Name() {
			return errors.Newf("consumer %s already registered", consumer.Name()).
				Component("events").
				Category(errors.CategoryState).
				Build()
		}
	}
	b.consumers = append(b.consumers, consumer)

	b.log.Info("registered event consumer", logger.String("consumer", consumer.Name()))

	if len(b.consumers) == 1 {
		b.start()
	}
	return nil
}

// TryPublish queues n without blocking. It returns false when the bus is stopped, has no
// consumers, or the target worker's buffer is full.
func (b *Bus) TryPublish(n Notification) bool {
	if b == nil || !b.running.Load() {
		return false
	}

	shard := b.shards[shardFor(n.Event.Key(), len(b.shards))]
	select {
	case shard <- n:
		b.received.Add(1)
		return true
	default:
		b.dropped.Add(1)
		if b.metrics != nil {
			b.metrics.BusDropped.Inc()
		}
		b.log.Debug("notification dropped due to full buffer",
			logger.String("identity", n.Event.Identity),
			logger.String("kind", string(n.Kind)))
		return false
	}
}

func shardFor(k Key, n int) int {
	if n == 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(k.Identity))
	_, _ = fmt.Fprintf(h, "/%d", k.StartRow)
	return int(h.Sum32() % uint32(n))
}

// start begins the worker goroutines
func (b *Bus) start() {
	if b.running.Swap(true) {
		return
	}
	for i, shard := range b.shards {
		b.wg.Go(func() { b.worker(i, shard) })
	}
}

func (b *Bus) worker(id int, shard <-chan Notification) {
	log := b.log.With(logger.Int("worker_id", id))
	for {
		select {
		case <-b.ctx.Done():
			// Deliver what is already queued before exiting.
			for {
				select {
				case n := <-shard:
					b.process(n, log)
				default:
					return
				}
			}
		case n := <-shard:
			b.process(n, log)
		}
	}
}

// process sends the notification to all registered consumers
func (b *Bus) process(n Notification, log logger.Logger) {
	b.mu.Lock()
	consumers := make([]Consumer, len(b.consumers))
	copy(consumers, b.consumers)
	b.mu.Unlock()

	for _, consumer := range consumers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.consumerErrors.Add(1)
					log.Error("consumer panicked",
						logger.String("consumer", consumer.Name()),
						logger.Any("panic", r),
						logger.String("identity", n.Event.Identity))
				}
			}()

			if err := consumer.Process(n); err != nil {
				b.consumerErrors.Add(1)
				log.Error("consumer error",
					logger.String("consumer", consumer.Name()),
					logger.Error(err),
					logger.String("identity", n.Event.Identity))
				return
			}
			b.processed.Add(1)
		}()
	}
}

// Shutdown stops accepting notifications, drains queued ones and waits for the workers
func (b *Bus) Shutdown(timeout time.Duration) error {
	if b == nil {
		return nil
	}
	b.running.Store(false)
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("event bus shutdown complete")
		return nil
	case <-time.After(timeout):
		b.log.Warn("event bus shutdown timeout exceeded")
		return errors.Newf("event bus shutdown timeout exceeded").
			Component("events").
			Category(errors.CategoryTimeout).
			Timing("shutdown", timeout).
			Build()
	}
}

// Stats returns current bus statistics
func (b *Bus) Stats() BusStats {
	if b == nil {
		return BusStats{}
	}
	return BusStats{
		Received:       b.received.Load(),
		Processed:      b.processed.Load(),
		Dropped:        b.dropped.Load(),
		ConsumerErrors: b.consumerErrors.Load(),
	}
}
