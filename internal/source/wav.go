package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/logger"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag
const wavFormatPCM = 1

// WAVSource reads I/Q recordings stored as two-channel PCM WAV files: left is I, right is Q
type WAVSource struct {
	path string

	mu         sync.Mutex
	file       *os.File
	decoder    *wav.Decoder
	sampleRate int
	scale      float32
	offset     int
	buf        *audio.IntBuffer
	pending    []complex64
	closed     bool
}

// NewWAVSource creates a WAV source for path. The sample rate comes from the file header.
func NewWAVSource(path string) *WAVSource {
	return &WAVSource{path: path}
}

func (s *WAVSource) Name() string { return fmt.Sprintf("wav input from '%s'", s.path) }

// SampleRate is known after Start
func (s *WAVSource) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

// Start opens the file and validates the header
func (s *WAVSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.decoder != nil {
		return nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return errors.New(err).
			Component("source").
			Category(errors.CategoryFileIO).
			Context("operation", "open_wav_input").
			Context("path", s.path).
			Build()
	}

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		_ = f.Close()
		return errors.Newf("input is not a valid WAV audio file").
			Component("source").
			Category(errors.CategoryValidation).
			Context("path", s.path).
			Build()
	}
	if decoder.NumChans != 2 {
		_ = f.Close()
		return errors.Newf("WAV input needs 2 channels for I/Q, got %d", decoder.NumChans).
			Component("source").
			Category(errors.CategoryValidation).
			Context("path", s.path).
			Context("channels", int(decoder.NumChans)).
			Build()
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		_ = f.Close()
		return errors.Newf("WAV input must be integer PCM, got format tag %d", decoder.WavAudioFormat).
			Component("source").
			Category(errors.CategoryValidation).
			Context("path", s.path).
			Build()
	}

	divisor, offset, err := pcmScale(int(decoder.BitDepth))
	if err != nil {
		_ = f.Close()
		return err
	}

	s.file = f
	s.decoder = decoder
	s.sampleRate = int(decoder.SampleRate)
	s.scale = 1 / divisor
	s.offset = offset

	GetLogger().Info("wav input opened",
		logger.String("path", s.path),
		logger.Int("sample_rate", s.sampleRate),
		logger.Int("bit_depth", int(decoder.BitDepth)))
	return nil
}

// Read fills dst with the next samples; a partial block at end of file is dropped
func (s *WAVSource) Read(ctx context.Context, dst []complex64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSourceClosed
	}
	if s.decoder == nil {
		return ErrNotStarted
	}

	filled := 0
	for filled < len(dst) {
		if len(s.pending) == 0 {
			if err := s.decodeLocked(len(dst) - filled); err != nil {
				return err
			}
		}
		n := copy(dst[filled:], s.pending)
		s.pending = s.pending[n:]
		filled += n
	}
	return nil
}

// decodeLocked decodes up to pairs samples into s.pending
func (s *WAVSource) decodeLocked(pairs int) error {
	if s.buf == nil || len(s.buf.Data) < pairs*2 {
		s.buf = &audio.IntBuffer{
			Data:   make([]int, pairs*2),
			Format: &audio.Format{SampleRate: s.sampleRate, NumChannels: 2},
		}
	}
	s.buf.Data = s.buf.Data[:cap(s.buf.Data)]

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return errors.New(err).
			Component("source").
			Category(errors.CategorySampleSource).
			Context("operation", "decode_wav").
			Build()
	}
	n &^= 1
	if n == 0 {
		return io.EOF
	}

	samples := make([]complex64, n/2)
	for i := range samples {
		re := float32(s.buf.Data[2*i]-s.offset) * s.scale
		im := float32(s.buf.Data[2*i+1]-s.offset) * s.scale
		samples[i] = complex(re, im)
	}
	s.pending = samples
	return nil
}

// Close releases the file
func (s *WAVSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// pcmScale returns the full-scale divisor and zero offset for integer PCM of the given depth.
// 8-bit WAV is unsigned.
func pcmScale(bitDepth int) (divisor float32, offset int, err error) {
	switch bitDepth {
	case 8:
		return 128, 128, nil
	case 16:
		return 32768, 0, nil
	case 24:
		return 8388608, 0, nil
	case 32:
		return 2147483648, 0, nil
	default:
		return 0, 0, errors.Newf("unsupported WAV bit depth %d", bitDepth).
			Component("source").
			Category(errors.CategoryValidation).
			Context("bit_depth", bitDepth).
			Build()
	}
}
