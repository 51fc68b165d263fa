package framequeue

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MLAB-project/pysdr/internal/logger"
	"github.com/MLAB-project/pysdr/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func collect(q *Queue, limit int) []uint64 {
	var rows []uint64
	q.Drain(limit, func(r Row) { rows = append(rows, r.Index) })
	return rows
}

func TestFIFOOrder(t *testing.T) {
	t.Parallel()

	q := New(8)
	for i := range uint64(5) {
		assert.False(t, q.Push(Row{Index: i}))
	}
	assert.Equal(t, []uint64{0, 1, 2, 3, 4}, collect(q, 0))
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, collect(q, 0))
}

func TestDropOldestWhenFull(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	q := New(3, WithLogger(logger.NewSlogLogger(&buf, logger.LogLevelDebug, nil)))

	for i := range uint64(5) {
		q.Push(Row{Index: i})
	}
	stats := q.Stats()
	assert.Equal(t, Stats{Depth: 3, Pushed: 5, Dropped: 2}, stats)
	assert.Equal(t, []uint64{2, 3, 4}, collect(q, 0))

	// two drops inside one report interval produce one warning
	assert.Equal(t, 1, strings.Count(buf.String(), "frame queue full"))
}

func TestDrainIsBounded(t *testing.T) {
	t.Parallel()

	q := New(100)
	for i := range uint64(10) {
		q.Push(Row{Index: i})
	}
	assert.Equal(t, []uint64{0, 1, 2, 3}, collect(q, 4))
	assert.Equal(t, 6, q.Len())
	assert.Equal(t, []uint64{4, 5, 6, 7, 8, 9}, collect(q, 100))
}

func TestMetricsReported(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewRenderMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	q := New(2, WithMetrics(m), WithLogger(logger.NewNopLogger()))

	q.Push(Row{Index: 0})
	q.Push(Row{Index: 1})
	q.Push(Row{Index: 2})
	assert.InDelta(t, 3, testutil.ToFloat64(m.QueuePushed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.QueueDropped), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.QueueDepth), 0)

	collect(q, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(m.QueueDepth), 0)
}

func TestConcurrentProducerConsumerKeepsOrder(t *testing.T) {
	t.Parallel()

	const total = 5000
	q := New(16, WithLogger(logger.NewNopLogger()), WithReportInterval(time.Hour))

	var wg sync.WaitGroup
	wg.Go(func() {
		for i := range uint64(total) {
			q.Push(Row{Index: i})
		}
	})

	var seen []uint64
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		seen = append(seen, collect(q, 8)...)
		select {
		case <-done:
			seen = append(seen, collect(q, 0)...)
			seen = append(seen, collect(q, 0)...)
			for i := 1; i < len(seen); i++ {
				require.Greater(t, seen[i], seen[i-1], "rows out of order")
			}
			stats := q.Stats()
			assert.Equal(t, uint64(total), stats.Pushed)
			assert.Equal(t, uint64(len(seen))+stats.Dropped, uint64(total))
			return
		default:
		}
	}
}
