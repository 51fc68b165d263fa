// Package framequeue hands colour-mapped rows from the producer goroutine to the render loop.
//
// The queue is bounded. When it is full, Push discards the oldest unconsumed row so the
// producer never blocks and the display always converges on the newest data. Drops are
// counted and reported through a rate-limited warning.
package framequeue

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MLAB-project/pysdr/internal/logger"
	"github.com/MLAB-project/pysdr/internal/observability/metrics"
)

// DefaultDrainLimit caps the rows popped per Drain call
const DefaultDrainLimit = 64

// Row is one display row
type Row struct {
	Index  uint64    // global row index
	Pixels []uint32  // packed RGBA, one per bin
	Log    []float32 // log-magnitude frame the pixels were coloured from
}

// Stats is a point-in-time view of the queue counters
type Stats struct {
	Depth   int
	Pushed  uint64
	Dropped uint64
}

// Queue is a single-producer single-consumer FIFO with drop-oldest overflow
type Queue struct {
	mu      sync.Mutex
	buf     []Row
	head    int
	n       int
	pushed  uint64
	dropped uint64

	unreported uint64
	limiter    *rate.Limiter
	log        logger.Logger
	metrics    *metrics.RenderMetrics
}

// Option configures a Queue
type Option func(*Queue)

// WithMetrics reports depth, pushes and drops
func WithMetrics(m *metrics.RenderMetrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithLogger overrides the package logger
func WithLogger(l logger.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// WithReportInterval sets the minimum spacing of backpressure warnings
func WithReportInterval(d time.Duration) Option {
	return func(q *Queue) { q.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// New creates a queue holding at most capacity rows
func New(capacity int, opts ...Option) *Queue {
	q := &Queue{
		buf:     make([]Row, max(capacity, 1)),
		limiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
		log:     GetLogger(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Capacity is the maximum number of queued rows
func (q *Queue) Capacity() int { return len(q.buf) }

// Push appends r without blocking. It reports true when the oldest row was discarded to
// make room.
func (q *Queue) Push(r Row) bool {
	q.mu.Lock()
	dropped := false
	if q.n == len(q.buf) {
		q.buf[q.head] = Row{}
		q.head = (q.head + 1) % len(q.buf)
		q.n--
		q.dropped++
		q.unreported++
		dropped = true
	}
	q.buf[(q.head+q.n)%len(q.buf)] = r
	q.n++
	q.pushed++
	depth := q.n

	var report uint64
	if dropped && q.limiter.Allow() {
		report = q.unreported
		q.unreported = 0
	}
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.QueuePushed.Inc()
		q.metrics.QueueDepth.Set(float64(depth))
		if dropped {
			q.metrics.QueueDropped.Inc()
		}
	}
	if report > 0 {
		q.log.Warn("frame queue full, dropping oldest rows",
			logger.Uint64("dropped", report),
			logger.Int("capacity", len(q.buf)),
			logger.Uint64("row", r.Index))
	}
	return dropped
}

// Drain pops up to limit rows in FIFO order and hands each to fn. It never blocks and
// returns the number of rows consumed. A non-positive limit uses DefaultDrainLimit.
func (q *Queue) Drain(limit int, fn func(Row)) int {
	if limit <= 0 {
		limit = DefaultDrainLimit
	}
	count := 0
	for count < limit {
		r, ok := q.pop()
		if !ok {
			break
		}
		fn(r)
		count++
	}
	if q.metrics != nil && count > 0 {
		q.metrics.QueueDepth.Set(float64(q.Len()))
	}
	return count
}

func (q *Queue) pop() (Row, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == 0 {
		return Row{}, false
	}
	r := q.buf[q.head]
	q.buf[q.head] = Row{}
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return r, true
}

// Len is the number of queued rows
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Stats returns the queue counters
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{Depth: q.n, Pushed: q.pushed, Dropped: q.dropped}
}
