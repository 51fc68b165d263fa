package observability

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotAndHandler(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Spectral.ObserveFrame(0.001)
	m.Spectral.ObserveFrame(0.001)
	m.Render.QueueDepth.Set(3)
	m.Render.TextureRow.Set(42)
	m.Events.Live.Set(2)
	m.Detector.RecordFault("a")
	m.Detector.RecordFault("b")

	snap := m.Snapshot()
	assert.InDelta(t, 2, snap.Frames, 0)
	assert.InDelta(t, 3, snap.QueueDepth, 0)
	assert.InDelta(t, 42, snap.TextureRow, 0)
	assert.InDelta(t, 2, snap.LiveEvents, 0)
	assert.InDelta(t, 2, snap.DetectorFault, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "pysdr_frames_total 2")
	assert.Contains(t, string(body), "go_goroutines")
}
