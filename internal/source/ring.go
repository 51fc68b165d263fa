package source

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/smallnest/ringbuffer"

	"github.com/MLAB-project/pysdr/internal/errors"
)

// sampleRing stages capture callback bytes until a reader collects a full block.
// The device callback must never block, so a write that does not fit is dropped whole.
type sampleRing struct {
	mu      sync.Mutex
	rb      *ringbuffer.RingBuffer
	ready   chan struct{}
	overrun atomic.Uint64
}

func newSampleRing(capacity int) *sampleRing {
	return &sampleRing{
		rb:    ringbuffer.New(capacity),
		ready: make(chan struct{}, 1),
	}
}

// write appends data and wakes a waiting reader. It reports false when data was dropped.
func (r *sampleRing) write(data []byte) bool {
	r.mu.Lock()
	if r.rb.Free() < len(data) {
		r.mu.Unlock()
		r.overrun.Add(1)
		return false
	}
	_, err := r.rb.Write(data)
	r.mu.Unlock()
	if err != nil {
		r.overrun.Add(1)
		return false
	}

	select {
	case r.ready <- struct{}{}:
	default:
	}
	return true
}

// readFull blocks until dst is filled. Partial data is consumed as it arrives so dst may
// exceed the ring capacity.
func (r *sampleRing) readFull(ctx context.Context, dst []byte, closed <-chan struct{}) error {
	off := 0
	for off < len(dst) {
		r.mu.Lock()
		if r.rb.Length() > 0 {
			n, err := r.rb.Read(dst[off:])
			r.mu.Unlock()
			if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
				return err
			}
			off += n
			continue
		}
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-closed:
			return ErrSourceClosed
		case <-r.ready:
		}
	}
	return nil
}

// Overruns is the number of dropped writes
func (r *sampleRing) Overruns() uint64 {
	return r.overrun.Load()
}
