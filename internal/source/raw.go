package source

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/logger"
)

// rawPairBytes is the size of one interleaved float32 I/Q pair
const rawPairBytes = 8

// RawSource reads interleaved little-endian float32 I/Q pairs from a file or stdin
type RawSource struct {
	path       string
	sampleRate int

	mu     sync.Mutex
	r      io.Reader
	closer io.Closer
	buf    []byte
	closed bool
}

// NewRawSource creates a raw source. A path of "-" reads stdin.
func NewRawSource(path string, sampleRate int) *RawSource {
	return &RawSource{path: path, sampleRate: sampleRate}
}

// NewRawReaderSource wraps an already open reader
func NewRawReaderSource(r io.Reader, sampleRate int) *RawSource {
	return &RawSource{path: "-", sampleRate: sampleRate, r: r}
}

func (s *RawSource) Name() string    { return fmt.Sprintf("raw input from '%s'", s.path) }
func (s *RawSource) SampleRate() int { return s.sampleRate }

// Start opens the input file unless a reader was supplied
func (s *RawSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.r != nil {
		return nil
	}
	if s.path == "" || s.path == "-" {
		s.r = bufio.NewReaderSize(os.Stdin, 1<<16)
		return nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return errors.New(err).
			Component("source").
			Category(errors.CategoryFileIO).
			Context("operation", "open_raw_input").
			Context("path", s.path).
			Build()
	}
	s.r = bufio.NewReaderSize(f, 1<<16)
	s.closer = f
	GetLogger().Info("raw input opened", logger.String("path", s.path), logger.Int("sample_rate", s.sampleRate))
	return nil
}

// Read fills dst. Short reads are accumulated; a partial block at the end of input is
// dropped and reported as io.EOF.
func (s *RawSource) Read(ctx context.Context, dst []complex64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSourceClosed
	}
	if s.r == nil {
		return ErrNotStarted
	}

	need := len(dst) * rawPairBytes
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	if _, err := io.ReadFull(s.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return errors.New(err).
			Component("source").
			Category(errors.CategorySampleSource).
			Context("operation", "read_raw_input").
			Build()
	}

	decodeFloat32Pairs(dst, buf)
	return nil
}

// Close releases the input file
func (s *RawSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// decodeFloat32Pairs converts little-endian float32 I/Q pairs in src into dst
func decodeFloat32Pairs(dst []complex64, src []byte) {
	for i := range dst {
		off := i * rawPairBytes
		re := math.Float32frombits(binary.LittleEndian.Uint32(src[off:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(src[off+4:]))
		dst[i] = complex(re, im)
	}
}
