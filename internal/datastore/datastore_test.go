package datastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MLAB-project/pysdr/internal/conf"
	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/events"
	"github.com/MLAB-project/pysdr/internal/observability/metrics"
)

// createDatabase opens a file-backed SQLite store in a temp dir
func createDatabase(t *testing.T) Interface {
	t.Helper()
	m, err := metrics.NewDatastoreMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	settings := &conf.DatastoreSettings{Type: "sqlite"}
	settings.SQLite.Path = filepath.Join(t.TempDir(), "db", "events.db")

	ds, err := New(settings, m)
	require.NoError(t, err)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func testRecord(session, identity string, startRow int64) *EventRecord {
	begin := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(startRow) * time.Second)
	return &EventRecord{
		Session:   session,
		Identity:  identity,
		StartRow:  startRow,
		EndRow:    startRow + 10,
		BeginTime: begin,
		EndTime:   begin.Add(10 * time.Second),
		FreqLo:    10300,
		FreqHi:    10900,
		Source:    "echo",
	}
}

func TestSaveEventUpsertsOccurrence(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t)
	ctx := context.Background()

	rec := testRecord("s1", "mlab.aabb_event.meteor_echo", 100)
	require.NoError(t, ds.SaveEvent(ctx, rec))
	firstID := rec.ID
	require.NotZero(t, firstID)

	update := testRecord("s1", "mlab.aabb_event.meteor_echo", 100)
	update.EndRow = 180
	update.Final = true
	update.Description = "@ 10.600 kHz"
	require.NoError(t, ds.SaveEvent(ctx, update))
	assert.Equal(t, firstID, update.ID)

	// same identity and start row in another session is a different occurrence
	require.NoError(t, ds.SaveEvent(ctx, testRecord("s2", "mlab.aabb_event.meteor_echo", 100)))

	n, err := ds.CountEvents(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = ds.CountEvents(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := ds.ListEvents(ctx, Filter{Session: "s1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(180), got[0].EndRow)
	assert.True(t, got[0].Final)
	assert.Equal(t, "@ 10.600 kHz", got[0].Description)
	assert.Equal(t, "echo", got[0].Source)
}

func TestListEventsFilter(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "a", "a"} {
		rec := testRecord("s", id, int64(i*100))
		rec.Final = i != 3
		require.NoError(t, ds.SaveEvent(ctx, rec))
	}

	tests := []struct {
		name   string
		filter Filter
		rows   []int64
	}{
		{"all newest first", Filter{}, []int64{300, 200, 100, 0}},
		{"identity", Filter{Identity: "a"}, []int64{300, 200, 0}},
		{"final only", Filter{Identity: "a", FinalOnly: true}, []int64{200, 0}},
		{"since", Filter{Since: testRecord("", "", 150).BeginTime}, []int64{300, 200}},
		{"limit", Filter{Limit: 1}, []int64{300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ds.ListEvents(ctx, tt.filter)
			require.NoError(t, err)
			rows := make([]int64, 0, len(got))
			for _, r := range got {
				rows = append(rows, r.StartRow)
			}
			assert.Equal(t, tt.rows, rows)
		})
	}
}

func TestWriterFollowsLifecycle(t *testing.T) {
	t.Parallel()

	ds := createDatabase(t)
	clock := events.RowClock{Start: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), RowDuration: 0.25}
	w := NewWriter(ds, "session", clock, func(bin int) float64 { return float64(bin) })
	assert.Equal(t, "datastore", w.Name())

	ev := events.Event{Identity: "x", StartRow: 8, EndRow: 12, BinLo: 5, BinHi: 9, Source: "det"}
	require.NoError(t, w.Process(events.Notification{Kind: events.Created, Event: ev}))
	ev.EndRow, ev.Final = 40, true
	require.NoError(t, w.Process(events.Notification{Kind: events.Finalized, Event: ev}))
	require.NoError(t, w.Process(events.Notification{Kind: events.Pruned, Event: ev}))

	got, err := ds.ListEvents(context.Background(), Filter{Session: "session"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(40), got[0].EndRow)
	assert.True(t, got[0].Final)
	assert.Equal(t, clock.Start.Add(2*time.Second), got[0].BeginTime.UTC())
	assert.Equal(t, clock.Start.Add(10*time.Second), got[0].EndTime.UTC())
	assert.InDelta(t, 5, got[0].FreqLo, 0)
}

func TestNewRejectsUnknownType(t *testing.T) {
	t.Parallel()

	_, err := New(&conf.DatastoreSettings{Type: "postgres"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestQueriesBeforeOpen(t *testing.T) {
	t.Parallel()

	ds, err := New(&conf.DatastoreSettings{}, nil)
	require.NoError(t, err)
	_, err = ds.ListEvents(context.Background(), Filter{})
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
	assert.Error(t, ds.Open(), "empty sqlite path")
	assert.NoError(t, ds.Close())
}
