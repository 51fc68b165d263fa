package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iq.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, 8000, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: 8000, NumChannels: channels},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestWAVSourceSplitsChannels(t *testing.T) {
	t.Parallel()

	path := writeWAV(t, 2, []int{16384, -16384, 0, 8192, -32768, 0})
	src := NewWAVSource(path)
	ctx := context.Background()
	require.NoError(t, src.Start(ctx))
	t.Cleanup(func() { _ = src.Close() })

	assert.Equal(t, 8000, src.SampleRate())

	got := make([]complex64, 3)
	require.NoError(t, src.Read(ctx, got))
	assert.InDelta(t, 0.5, real(got[0]), 1e-6)
	assert.InDelta(t, -0.5, imag(got[0]), 1e-6)
	assert.InDelta(t, 0.25, imag(got[1]), 1e-6)
	assert.InDelta(t, -1.0, real(got[2]), 1e-6)

	assert.ErrorIs(t, src.Read(ctx, got[:1]), io.EOF)
}

func TestWAVSourceRejectsMono(t *testing.T) {
	t.Parallel()

	path := writeWAV(t, 1, []int{1, 2, 3, 4})
	src := NewWAVSource(path)
	err := src.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 channels")
}

func TestPCMScale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		depth   int
		divisor float32
		offset  int
		wantErr bool
	}{
		{8, 128, 128, false},
		{16, 32768, 0, false},
		{24, 8388608, 0, false},
		{32, 2147483648, 0, false},
		{12, 0, 0, true},
	}
	for _, tt := range tests {
		divisor, offset, err := pcmScale(tt.depth)
		if tt.wantErr {
			assert.Error(t, err, "depth %d", tt.depth)
			continue
		}
		require.NoError(t, err)
		assert.InDelta(t, tt.divisor, divisor, 0)
		assert.Equal(t, tt.offset, offset)
	}
}
