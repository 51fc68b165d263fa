package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MLAB-project/pysdr/internal/testutil"
)

func TestSampleRingDropsWholeWriteWhenFull(t *testing.T) {
	t.Parallel()

	r := newSampleRing(16)
	assert.True(t, r.write(make([]byte, 12)))
	assert.False(t, r.write(make([]byte, 8)))
	assert.Equal(t, uint64(1), r.Overruns())
}

func TestSampleRingReadSpansWrites(t *testing.T) {
	t.Parallel()

	r := newSampleRing(8)
	closed := make(chan struct{})
	done := make(chan []byte)

	go func() {
		dst := make([]byte, 12)
		if err := r.readFull(context.Background(), dst, closed); err != nil {
			done <- nil
			return
		}
		done <- dst
	}()

	for i := byte(0); i < 3; i++ {
		for !r.write([]byte{i*4 + 1, i*4 + 2, i*4 + 3, i*4 + 4}) {
			time.Sleep(time.Millisecond)
		}
	}

	got := testutil.WaitForResult(t, done, testutil.DefaultTestTimeout, "readFull did not complete")
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, got)
}

func TestSampleRingUnblocksOnCloseAndCancel(t *testing.T) {
	t.Parallel()

	r := newSampleRing(8)
	closed := make(chan struct{})
	close(closed)
	require.ErrorIs(t, r.readFull(context.Background(), make([]byte, 4), closed), ErrSourceClosed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, r.readFull(ctx, make([]byte, 4), make(chan struct{})), context.Canceled)
}
