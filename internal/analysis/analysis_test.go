package analysis

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MLAB-project/pysdr/internal/conf"
	"github.com/MLAB-project/pysdr/internal/datastore"
	"github.com/MLAB-project/pysdr/internal/detector"
	"github.com/MLAB-project/pysdr/internal/errors"
)

const (
	testRate = 48000
	testRows = 300
)

// replaySettings describes a synthetic capture with a steady carrier inside the streamed
// echo detector's peak band
func replaySettings(t *testing.T) *conf.Settings {
	t.Helper()
	dir := t.TempDir()

	s := &conf.Settings{}
	s.Input.Kind = conf.InputSynthetic
	s.Input.SampleRate = testRate
	s.Input.Synthetic.Tones = []conf.ToneSettings{{Frequency: 10600, Amplitude: 0.5}}
	s.Input.Synthetic.Noise = 0.01
	s.Input.Synthetic.Seed = 3
	s.Input.Synthetic.Limit = testRows * 512
	s.Spectral = conf.SpectralSettings{Bins: 1024, Overlap: 0.5, LogScale: 10, TileWidth: 64, TileHeight: 64}
	s.Display = conf.DisplaySettings{
		MagLo: -45, MagHi: 5, HeightSeconds: 2, QueueCapacity: 1024, DrainLimit: 256,
		Snapshot: filepath.Join(dir, "out", "snapshot.png"),
	}
	s.Detectors = []conf.DetectorSettings{{Name: "echo", Kind: "meteor_echo_stream", Enabled: true}}
	s.Events = conf.EventSettings{BufferSize: 1000, Workers: 1}
	s.Datastore.Enabled = true
	s.Datastore.Type = "sqlite"
	s.Datastore.SQLite.Path = filepath.Join(dir, "events.db")
	return s
}

func TestReplayCollectsFinalEvents(t *testing.T) {
	settings := replaySettings(t)

	res, err := Replay(context.Background(), settings)
	require.NoError(t, err)

	assert.Equal(t, uint64(testRows), res.Rows)
	assert.Zero(t, res.Dropped)
	assert.Contains(t, res.Source, "synthetic")

	// the carrier never fades, so the occurrence is closed by the end of the stream
	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, detector.MeteorEchoIdentity, ev.Identity)
	assert.True(t, ev.Final)
	assert.InDelta(t, 10600, res.Bin2Freq((ev.BinLo+ev.BinHi)/2), 100)

	f, err := os.Open(res.Snapshot)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, snapshotWidth, img.Bounds().Dx())

	store, err := datastore.New(&settings.Datastore, nil)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	defer store.Close()
	stored, err := store.ListEvents(context.Background(), datastore.Filter{Session: res.SessionID, FinalOnly: true})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, ev.StartRow, stored[0].StartRow)
}

func TestReplayWithoutSnapshot(t *testing.T) {
	settings := replaySettings(t)
	settings.Display.Snapshot = ""
	settings.Datastore.Enabled = false

	res, err := Replay(context.Background(), settings)
	require.NoError(t, err)
	assert.Empty(t, res.Snapshot)
	assert.Equal(t, uint64(testRows), res.Rows)
}

func TestMQTTIngestNeedsBroker(t *testing.T) {
	settings := replaySettings(t)
	settings.Datastore.Enabled = false
	settings.Ingest.MQTT.Enabled = true

	_, err := Replay(context.Background(), settings)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestReplayRejectsUnknownInput(t *testing.T) {
	settings := replaySettings(t)
	settings.Datastore.Enabled = false
	settings.Input.Kind = "carrier pigeon"

	_, err := Replay(context.Background(), settings)
	require.Error(t, err)
}
