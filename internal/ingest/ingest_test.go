package ingest

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/events"
	"github.com/MLAB-project/pysdr/internal/mqtt"
	"github.com/MLAB-project/pysdr/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// 4096 bins, 3072 overlap: one row per 1024 sample frames
var testGeom = Geometry{Bins: 4096, Overlap: 3072, SampleRate: 48000}

func frame(identity, payload string) []byte {
	b := []byte{0xF0, 0x7D}
	b = append(b, identity...)
	b = append(b, ' ')
	b = append(b, payload...)
	return append(b, 0xF7)
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    events.Event
		wantErr bool
	}{
		{
			name:    "full payload",
			payload: `{"offset": 48000, "length": 24000, "freq": [10000, 11000], "description": "ping"}`,
			want:    events.Event{StartRow: 46, EndRow: 70, BinLo: 2901, BinHi: 2986, Description: "ping"},
		},
		{
			name:    "offset only spans all bins and one row",
			payload: `{"offset": 1024}`,
			want:    events.Event{StartRow: 1, EndRow: 2, BinLo: 0, BinHi: 4096},
		},
		{
			name:    "frequencies clamp to the frame",
			payload: `{"offset": 0, "freq": [-30000, 30000]}`,
			want:    events.Event{StartRow: 0, EndRow: 1, BinLo: 0, BinHi: 4096},
		},
		{name: "invalid json", payload: `{"offset": `, wantErr: true},
		{name: "missing offset", payload: `{"length": 10}`, wantErr: true},
		{name: "non numeric offset", payload: `{"offset": "ten"}`, wantErr: true},
		{name: "negative offset", payload: `{"offset": -1}`, wantErr: true},
		{name: "non numeric length", payload: `{"offset": 0, "length": true}`, wantErr: true},
		{name: "freq with one element", payload: `{"offset": 0, "freq": [100]}`, wantErr: true},
		{name: "inverted freq", payload: `{"offset": 0, "freq": [200, 100]}`, wantErr: true},
		{name: "description not a string", payload: `{"offset": 0, "description": 5}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, err := Parse(Message{Identity: "ext", Payload: []byte(tt.payload), Transport: TransportMQTT}, testGeom)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, errors.CategoryEventIngest))
				return
			}
			require.NoError(t, err)
			tt.want.Identity = "ext"
			tt.want.Final = true
			tt.want.Source = TransportMQTT
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestParseRequiresIdentity(t *testing.T) {
	t.Parallel()
	_, err := Parse(Message{Payload: []byte(`{"offset": 0}`)}, testGeom)
	assert.Error(t, err)
}

func TestSysExReader(t *testing.T) {
	t.Parallel()

	var stream []byte
	stream = append(stream, 0x01, 0x02) // noise before the first frame
	stream = append(stream, frame("a", `{"offset":1}`)...)
	// foreign manufacturer
	stream = append(stream, 0xF0, 0x43, 'x', 0xF7)
	// interrupted by the next start byte
	stream = append(stream, 0xF0, 0x7D, 'b', ' ', '{')
	// realtime byte inside the frame
	stream = append(stream, 0xF0, 0x7D, 'c', 0xF8, ' ', '{', '}', 0xF7)
	// no identity separator
	stream = append(stream, 0xF0, 0x7D, 'n', 'o', 's', 'p', 0xF7)
	stream = append(stream, frame("d", `{}`)...)

	r := NewSysExReader(bytes.NewReader(stream), 0)

	msg, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, Message{Identity: "a", Payload: []byte(`{"offset":1}`), Transport: TransportSysEx}, msg)

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrFraming)

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrFraming, "interrupted frame")

	msg, err = r.Next()
	require.NoError(t, err, "reader resyncs on the interrupting start byte")
	assert.Equal(t, "c", msg.Identity)
	assert.Equal(t, []byte(`{}`), msg.Payload)

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrFraming)

	msg, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "d", msg.Identity)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSysExReaderFrameLimit(t *testing.T) {
	t.Parallel()

	long := frame("big", `{"offset": 1, "description": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}`)
	stream := append(long, frame("ok", `{}`)...)
	r := NewSysExReader(bytes.NewReader(stream), 16)

	_, err := r.Next()
	require.ErrorIs(t, err, ErrFraming)
	msg, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Identity)
}

func newTestIngester(t *testing.T, opts ...Option) (*Ingester, *events.Correlator, *metrics.EventMetrics) {
	t.Helper()
	m, err := metrics.NewEventMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	corr := events.NewCorrelator()
	in, err := NewIngester(testGeom, corr, append([]Option{WithMetrics(m)}, opts...)...)
	require.NoError(t, err)
	return in, corr, m
}

func ingestCount(m *metrics.EventMetrics, transport, status string) float64 {
	return testutil.ToFloat64(m.IngestMessages().WithLabelValues(transport, status))
}

func TestHandleDedupe(t *testing.T) {
	t.Parallel()

	in, corr, m := newTestIngester(t)
	msg := Message{Identity: "ext", Payload: []byte(`{"offset": 2048, "length": 2048}`), Transport: TransportMQTT}

	require.NoError(t, in.Handle(msg))
	require.NoError(t, in.Handle(msg), "redelivery is not an error")
	require.Error(t, in.Handle(Message{Identity: "ext", Payload: []byte("nope"), Transport: TransportMQTT}))

	// same identity, new payload is a new delivery
	require.NoError(t, in.Handle(Message{Identity: "ext", Payload: []byte(`{"offset": 4096}`), Transport: TransportMQTT}))

	assert.Equal(t, 2, corr.Len())
	ev, ok := corr.Get(events.Key{Identity: "ext", StartRow: 2})
	require.True(t, ok)
	assert.Equal(t, int64(4), ev.EndRow)

	assert.InDelta(t, 2, ingestCount(m, TransportMQTT, metrics.StatusSuccess), 0)
	assert.InDelta(t, 1, ingestCount(m, TransportMQTT, metrics.StatusDropped), 0)
	assert.InDelta(t, 1, ingestCount(m, TransportMQTT, metrics.StatusError), 0)
}

func TestHandleDedupeWindowExpires(t *testing.T) {
	t.Parallel()

	in, _, m := newTestIngester(t, WithDedupeWindow(20*time.Millisecond))
	msg := Message{Identity: "ext", Payload: []byte(`{"offset": 0}`), Transport: TransportSysEx}
	require.NoError(t, in.Handle(msg))
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, in.Handle(msg))
	assert.InDelta(t, 2, ingestCount(m, TransportSysEx, metrics.StatusSuccess), 0)
}

func TestRunSysEx(t *testing.T) {
	t.Parallel()

	in, corr, m := newTestIngester(t)
	var stream []byte
	stream = append(stream, frame("mlab.aabb_event.a", `{"offset": 0, "length": 4096}`)...)
	stream = append(stream, 0xF0, 0x7D, 0xF7) // empty frame
	stream = append(stream, frame("mlab.aabb_event.b", `{"offset": "x"}`)...)
	stream = append(stream, frame("mlab.aabb_event.c", `{"offset": 10240}`)...)

	require.NoError(t, in.RunSysEx(context.Background(), bytes.NewReader(stream)))

	assert.Equal(t, 2, corr.Len())
	assert.InDelta(t, 2, ingestCount(m, TransportSysEx, metrics.StatusSuccess), 0)
	assert.InDelta(t, 2, ingestCount(m, TransportSysEx, metrics.StatusError), 0)
}

func TestRunSysExStopsOnCancel(t *testing.T) {
	t.Parallel()

	in, corr, _ := newTestIngester(t)
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- in.RunSysEx(ctx, pr) }()

	_, err := pw.Write(frame("x", `{"offset": 0}`))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return corr.Len() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("RunSysEx did not return after cancel")
	}
	_ = pw.Close()
}

// fakeSubscriber captures the handler registered by SubscribeMQTT
type fakeSubscriber struct {
	mqtt.Client
	filter  string
	handler mqtt.Handler
}

func (f *fakeSubscriber) Subscribe(topic string, h mqtt.Handler) error {
	f.filter, f.handler = topic, h
	return nil
}

func TestSubscribeMQTT(t *testing.T) {
	t.Parallel()

	in, corr, _ := newTestIngester(t)
	sub := &fakeSubscriber{}
	require.NoError(t, in.SubscribeMQTT(sub, "pysdr/ingest/"))
	assert.Equal(t, "pysdr/ingest/#", sub.filter)

	sub.handler("pysdr/ingest/mlab.aabb_event.beacon", []byte(`{"offset": 3072, "freq": [0, 1000]}`))
	sub.handler("pysdr/ingest", []byte(`{"offset": 0}`)) // no identity, discarded

	require.Equal(t, 1, corr.Len())
	ev, ok := corr.Get(events.Key{Identity: "mlab.aabb_event.beacon", StartRow: 3})
	require.True(t, ok)
	assert.Equal(t, TransportMQTT, ev.Source)
	assert.Equal(t, 2048, ev.BinLo)
}

func TestNewIngesterRejectsGeometry(t *testing.T) {
	t.Parallel()
	_, err := NewIngester(Geometry{Bins: 1024, Overlap: 1024, SampleRate: 48000}, events.NewCorrelator())
	assert.Error(t, err)
}
