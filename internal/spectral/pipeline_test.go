package spectral

import (
	"context"
	"io"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterReader yields samples 0, 1, 2, ... as real values and fails after limit samples
type counterReader struct {
	next  int
	limit int
}

func (c *counterReader) Read(_ context.Context, dst []complex64) error {
	if c.limit > 0 && c.next+len(dst) > c.limit {
		return io.EOF
	}
	for i := range dst {
		dst[i] = complex(float32(c.next), 0)
		c.next++
	}
	return nil
}

// toneReader yields a complex exponential at freq Hz
type toneReader struct {
	rate, freq float64
	n          int
}

func (r *toneReader) Read(_ context.Context, dst []complex64) error {
	for i := range dst {
		dst[i] = complex64(cmplx.Exp(complex(0, 2*math.Pi*r.freq*float64(r.n)/r.rate)))
		r.n++
	}
	return nil
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", Config{Bins: 4096, Overlap: 3072, TileWidth: 1024, SampleRate: 48000}, false},
		{"no overlap", Config{Bins: 1024, Overlap: 0, TileWidth: 1024, SampleRate: 48000}, false},
		{"amplitude scale", Config{Bins: 2048, Overlap: 1024, TileWidth: 1024, LogScale: 20, SampleRate: 48000}, false},
		{"bins not multiple of tile", Config{Bins: 1000, Overlap: 0, TileWidth: 1024, SampleRate: 48000}, true},
		{"overlap equals bins", Config{Bins: 1024, Overlap: 1024, TileWidth: 1024, SampleRate: 48000}, true},
		{"negative overlap", Config{Bins: 1024, Overlap: -1, TileWidth: 1024, SampleRate: 48000}, true},
		{"bad log scale", Config{Bins: 1024, TileWidth: 1024, LogScale: 3, SampleRate: 48000}, true},
		{"no sample rate", Config{Bins: 1024, TileWidth: 1024}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Bins-tt.cfg.Overlap, p.ReadSize())
		})
	}
}

func TestHundredFramesAreGapless(t *testing.T) {
	t.Parallel()

	p, err := New(Config{Bins: 4096, Overlap: 3072, TileWidth: 1024, SampleRate: 48000})
	require.NoError(t, err)
	assert.InDelta(t, 0.021333, p.RowDuration(), 1e-6)

	r := &toneReader{rate: 48000, freq: 1000}
	ctx := context.Background()
	for want := range uint64(100) {
		frame, err := p.Produce(ctx, r)
		require.NoError(t, err)
		require.Equal(t, want, frame.Row)
		require.Len(t, frame.Linear, 4096)
		require.Len(t, frame.Log, 4096)
	}
	assert.Equal(t, uint64(100), p.NextRow())
}

func TestToneLandsInShiftedBin(t *testing.T) {
	t.Parallel()

	const bins, rate = 1024, 48000.0
	p, err := New(Config{Bins: bins, Overlap: 768, TileWidth: 1024, SampleRate: rate})
	require.NoError(t, err)

	// 3000 Hz sits exactly on bin 64 above centre
	r := &toneReader{rate: rate, freq: 3000}
	var frame *Frame
	for range 8 {
		frame, err = p.Produce(context.Background(), r)
		require.NoError(t, err)
	}

	best := 0
	for i, v := range frame.Linear {
		if v > frame.Linear[best] {
			best = i
		}
	}
	assert.Equal(t, bins/2+64, best)
	// Hann window coherent gain is 0.5
	assert.InDelta(t, bins/2, frame.Linear[best], 1)
	assert.InDelta(t, 10*math.Log10(float64(frame.Linear[best])), frame.Log[best], 1e-3)
}

func TestRingWrapKeepsNewestWindow(t *testing.T) {
	t.Parallel()

	const bins, overlap = 16, 12
	p, err := New(Config{Bins: bins, Overlap: overlap, TileWidth: 4, SampleRate: 1000})
	require.NoError(t, err)

	r := &counterReader{}
	ctx := context.Background()
	window := hann(bins)

	// enough frames to wrap the ring several times
	for range 40 {
		frame, err := p.Produce(ctx, r)
		require.NoError(t, err)

		// the analysed window is the newest bins samples, zero-padded at start-up
		signal := make([]complex128, bins)
		for i := range signal {
			v := r.next - bins + i
			if v >= 0 {
				signal[i] = complex(float64(v)*window[i], 0)
			}
		}
		want := naiveShiftedMagnitudes(signal)
		for i := range want {
			require.InDelta(t, want[i], frame.Linear[i], 1e-2*math.Max(1, want[i]), "row %d bin %d", frame.Row, i)
		}
	}
}

func naiveShiftedMagnitudes(x []complex128) []float64 {
	n := len(x)
	out := make([]float64, n)
	for k := range n {
		var sum complex128
		for t, v := range x {
			sum += v * cmplx.Exp(complex(0, -2*math.Pi*float64(k*t)/float64(n)))
		}
		out[(k+n/2)%n] = cmplx.Abs(sum)
	}
	return out
}

func TestSourceFailureEmitsNoFrame(t *testing.T) {
	t.Parallel()

	p, err := New(Config{Bins: 8, Overlap: 4, TileWidth: 4, SampleRate: 1000})
	require.NoError(t, err)

	r := &counterReader{limit: 10}
	var rows []uint64
	err = p.Run(context.Background(), r, func(f *Frame) error {
		rows = append(rows, f.Row)
		return nil
	})
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []uint64{0, 1}, rows)
	assert.Equal(t, uint64(2), p.NextRow())
}

func TestProcessRejectsWrongBlockSize(t *testing.T) {
	t.Parallel()

	p, err := New(Config{Bins: 8, Overlap: 4, TileWidth: 4, SampleRate: 1000})
	require.NoError(t, err)

	_, err = p.Process(make([]complex64, 3))
	require.Error(t, err)

	frame, err := p.Process(make([]complex64, 4))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), frame.Row)
	// silence hits the floor instead of -Inf
	assert.InDelta(t, -200, frame.Log[0], 1e-3)
}

func TestFFTShift(t *testing.T) {
	t.Parallel()

	dst := make([]float32, 4)
	fftShift(dst, []float32{0, 1, 2, 3})
	assert.Equal(t, []float32{2, 3, 0, 1}, dst)
}
