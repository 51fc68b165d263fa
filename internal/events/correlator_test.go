package events

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MLAB-project/pysdr/internal/canvas"
	"github.com/MLAB-project/pysdr/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is a synchronous Publisher
type recorder struct {
	mu    sync.Mutex
	kinds []Lifecycle
	evs   []Event
}

func (r *recorder) TryPublish(n Notification) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, n.Kind)
	r.evs = append(r.evs, n.Event)
	return true
}

func echo(start, end int64) Event {
	return Event{Identity: "mlab.aabb_event.meteor_echo", StartRow: start, EndRow: end, BinLo: 10, BinHi: 20, Description: "@ 10.600 kHz"}
}

func TestUpsertReplacesSameOccurrence(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := NewCorrelator(WithPublisher(rec))

	assert.Equal(t, Created, c.Upsert(echo(100, 175)))
	assert.Equal(t, Updated, c.Upsert(echo(100, 180)))
	assert.Equal(t, Updated, c.Upsert(echo(100, 190)))

	require.Equal(t, 1, c.Len())
	got, ok := c.Get(Key{Identity: "mlab.aabb_event.meteor_echo", StartRow: 100})
	require.True(t, ok)
	assert.Equal(t, int64(190), got.EndRow)
	assert.Equal(t, []Lifecycle{Created, Updated, Updated}, rec.kinds)
}

func TestUpsertDistinctKeysAppend(t *testing.T) {
	t.Parallel()

	c := NewCorrelator()
	c.Upsert(echo(100, 175))
	c.Upsert(echo(101, 175))

	other := echo(100, 175)
	other.Identity = "mlab.aabb_event.measurement_area"
	c.Upsert(other)

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, int64(101), snap[1].StartRow)
	assert.Equal(t, "mlab.aabb_event.measurement_area", snap[2].Identity)
}

func TestUpsertReportsFinalization(t *testing.T) {
	t.Parallel()

	c := NewCorrelator()
	ev := echo(5, 80)
	c.Upsert(ev)
	ev.Final = true
	assert.Equal(t, Finalized, c.Upsert(ev))
	// once final, further replacements are plain updates
	assert.Equal(t, Updated, c.Upsert(ev))
}

func TestPruneWindow(t *testing.T) {
	t.Parallel()

	const height = 1024
	const textureRow = int64(5000)

	tests := []struct {
		name   string
		end    int64
		pruned bool
	}{
		{"one past the window", textureRow - height - 1, true},
		{"exactly at the window edge", textureRow - height, true},
		{"last retained row", textureRow - height + 1, false},
		{"ongoing", textureRow + 40, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := &recorder{}
			c := NewCorrelator(WithPublisher(rec))
			c.Upsert(echo(tt.end-50, tt.end))

			removed := c.Prune(textureRow, height)
			if tt.pruned {
				assert.Equal(t, 1, removed)
				assert.Zero(t, c.Len())
				assert.Equal(t, Pruned, rec.kinds[len(rec.kinds)-1])
			} else {
				assert.Zero(t, removed)
				assert.Equal(t, 1, c.Len())
			}
		})
	}
}

func TestPruneKeepsIndexConsistent(t *testing.T) {
	t.Parallel()

	c := NewCorrelator()
	c.Upsert(echo(0, 10))
	c.Upsert(echo(50, 2000))
	c.Upsert(echo(60, 20))
	c.Upsert(echo(70, 2100))

	assert.Equal(t, 2, c.Prune(1500, 1024))

	// surviving entries are still found and replaced in place
	assert.Equal(t, Updated, c.Upsert(echo(70, 2200)))
	snap := c.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, int64(50), snap[0].StartRow)
	assert.Equal(t, int64(2200), snap[1].EndRow)
}

func TestCorrelatorMetrics(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewEventMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	c := NewCorrelator(WithCorrelatorMetrics(m))

	c.Upsert(echo(0, 10))
	c.Upsert(echo(0, 12))
	c.Upsert(echo(30, 40))
	c.Prune(2000, 1024)

	assert.InDelta(t, 2, testutil.ToFloat64(m.Created), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Updated), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Pruned), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.Live), 0)
}

func TestVisibleMapsThroughCanvas(t *testing.T) {
	t.Parallel()

	backend := canvas.NewMemoryBackend()
	cv, err := canvas.New(canvas.ConfigFor(64, 16, 32, 8), backend)
	require.NoError(t, err)
	for row := range uint64(20) {
		require.NoError(t, cv.Insert(row, make([]uint32, 64)))
	}
	// texture row is now 20, height 16

	c := NewCorrelator()
	c.Upsert(Event{Identity: "a", StartRow: 15, EndRow: 19, BinLo: 16, BinHi: 32, Description: "recent"})
	c.Upsert(Event{Identity: "b", StartRow: 0, EndRow: 2, BinLo: 0, BinHi: 8, Description: "scrolled away"})

	markers := c.Visible(cv)
	require.Len(t, markers, 1)
	m := markers[0]
	assert.Equal(t, "recent", m.Label)
	assert.InDelta(t, 0.25, m.Rect.X0, 1e-9)
	assert.InDelta(t, 0.5, m.Rect.X1, 1e-9)
	assert.InDelta(t, 1-5.0/16, m.Rect.Y0, 1e-9)
	assert.InDelta(t, 1-1.0/16, m.Rect.Y1, 1e-9)
}

func TestRowClock(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rc := RowClock{Start: start, RowDuration: 1024.0 / 48000.0}
	s, e := rc.Span(Event{StartRow: -24, EndRow: 75})
	assert.InDelta(t, -0.512, s.Sub(start).Seconds(), 1e-6)
	assert.InDelta(t, 75*1024.0/48000.0, e.Sub(start).Seconds(), 1e-6)
}
