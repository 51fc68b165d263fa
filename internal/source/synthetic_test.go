package source

import (
	"context"
	"io"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MLAB-project/pysdr/internal/conf"
)

func TestSyntheticSourceTone(t *testing.T) {
	t.Parallel()

	src := NewSyntheticSource(SyntheticConfig{
		SampleRate: 8000,
		Tones:      []Tone{{Frequency: 1000, Amplitude: 1}},
	})
	ctx := context.Background()
	require.NoError(t, src.Start(ctx))

	buf := make([]complex64, 8)
	require.NoError(t, src.Read(ctx, buf))
	for i, s := range buf {
		want := cmplx.Exp(complex(0, 2*math.Pi*1000*float64(i)/8000))
		assert.InDelta(t, real(want), real(s), 1e-6, "sample %d", i)
		assert.InDelta(t, imag(want), imag(s), 1e-6, "sample %d", i)
	}

	// phase continues across reads
	require.NoError(t, src.Read(ctx, buf[:1]))
	assert.InDelta(t, 1.0, real(buf[0]), 1e-6)
	assert.Equal(t, int64(9), src.Generated())
}

func TestSyntheticSourceDeterministicNoise(t *testing.T) {
	t.Parallel()

	cfg := SyntheticConfig{SampleRate: 8000, Noise: 0.1, Seed: 42}
	a, b := NewSyntheticSource(cfg), NewSyntheticSource(cfg)
	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))

	bufA, bufB := make([]complex64, 64), make([]complex64, 64)
	require.NoError(t, a.Read(ctx, bufA))
	require.NoError(t, b.Read(ctx, bufB))
	assert.Equal(t, bufA, bufB)
}

func TestSyntheticSourceLimit(t *testing.T) {
	t.Parallel()

	src := NewSyntheticSource(SyntheticConfig{SampleRate: 8000, Limit: 10})
	ctx := context.Background()
	require.NoError(t, src.Start(ctx))

	buf := make([]complex64, 4)
	require.NoError(t, src.Read(ctx, buf))
	require.NoError(t, src.Read(ctx, buf))
	assert.ErrorIs(t, src.Read(ctx, buf), io.EOF)
}

func TestNewFromSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind    string
		wantErr bool
		want    string
	}{
		{conf.InputRaw, false, "raw input from '-'"},
		{conf.InputSynthetic, false, "synthetic input (1 tones)"},
		{conf.InputSoundcard, false, "soundcard input 'default'"},
		{"bogus", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			t.Parallel()
			s := &conf.Settings{}
			s.Input.Kind = tt.kind
			s.Input.Path = "-"
			s.Input.SampleRate = 48000
			s.Input.Synthetic.Tones = []conf.ToneSettings{{Frequency: 100, Amplitude: 1}}

			src, err := New(s)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, src.Name())
			assert.Equal(t, 48000, src.SampleRate())
		})
	}
}
