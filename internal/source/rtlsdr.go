//go:build rtlsdr

package source

import (
	"context"
	"fmt"
	"sync"

	rtl "github.com/jpoirier/gortlsdr"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/logger"
)

// RTLSDRSource reads I/Q samples from an RTL2832 dongle
type RTLSDRSource struct {
	index      int
	frequency  int
	sampleRate int
	gain       int

	mu      sync.Mutex
	dongle  *rtl.Context
	buf     []byte
	pending []complex64
	closed  bool
}

// NewRTLSDRSource creates a dongle source. Gain is in tenths of a dB; zero selects automatic gain.
func NewRTLSDRSource(index, frequency, sampleRate, gain int) Source {
	return &RTLSDRSource{index: index, frequency: frequency, sampleRate: sampleRate, gain: gain}
}

func (s *RTLSDRSource) Name() string {
	return fmt.Sprintf("rtlsdr input #%d @ %.3f MHz", s.index, float64(s.frequency)/1e6)
}

func (s *RTLSDRSource) SampleRate() int { return s.sampleRate }

// Start opens and tunes the dongle
func (s *RTLSDRSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dongle != nil {
		return nil
	}

	count := rtl.GetDeviceCount()
	if count == 0 || s.index >= count {
		return errors.Newf("RTL-SDR device #%d not found (%d present)", s.index, count).
			Component("source").
			Category(errors.CategoryNotFound).
			Build()
	}

	dongle, err := rtl.Open(s.index)
	if err != nil {
		return rtlError(err, "open_device")
	}

	setup := []rtlStep{
		{"set_center_freq", func() error { return dongle.SetCenterFreq(s.frequency) }},
		{"set_sample_rate", func() error { return dongle.SetSampleRate(s.sampleRate) }},
		{"set_gain_mode", func() error { return dongle.SetTunerGainMode(s.gain != 0) }},
	}
	if s.gain != 0 {
		setup = append(setup, rtlStep{"set_tuner_gain", func() error { return dongle.SetTunerGain(s.gain) }})
	}
	setup = append(setup, rtlStep{"reset_buffer", dongle.ResetBuffer})

	for _, step := range setup {
		if err := step.fn(); err != nil {
			_ = dongle.Close()
			return rtlError(err, step.op)
		}
	}

	s.dongle = dongle
	s.buf = make([]byte, rtl.DefaultBufLength)
	GetLogger().Info("rtlsdr tuned",
		logger.Int("index", s.index),
		logger.Int("frequency", s.frequency),
		logger.Int("sample_rate", s.sampleRate),
		logger.Int("gain", s.gain))
	return nil
}

// Read fills dst from synchronous dongle reads
func (s *RTLSDRSource) Read(ctx context.Context, dst []complex64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSourceClosed
	}
	if s.dongle == nil {
		return ErrNotStarted
	}

	filled := 0
	for filled < len(dst) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(s.pending) == 0 {
			n, err := s.dongle.ReadSync(s.buf, len(s.buf))
			if err != nil {
				return rtlError(err, "read_sync")
			}
			samples := make([]complex64, n/2)
			decodeUint8Pairs(samples, s.buf[:n&^1])
			s.pending = samples
		}
		n := copy(dst[filled:], s.pending)
		s.pending = s.pending[n:]
		filled += n
	}
	return nil
}

// Close releases the dongle
func (s *RTLSDRSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.dongle != nil {
		return s.dongle.Close()
	}
	return nil
}

// rtlStep is one dongle configuration call
type rtlStep struct {
	op string
	fn func() error
}

func rtlError(err error, op string) error {
	return errors.New(err).
		Component("source").
		Category(errors.CategorySampleSource).
		Context("operation", op).
		Build()
}

// ListRTLSDRDevices names the attached dongles by index
func ListRTLSDRDevices() ([]DeviceInfo, error) {
	count := rtl.GetDeviceCount()
	devices := make([]DeviceInfo, 0, count)
	for i := range count {
		manufacturer, product, serial, err := rtl.GetDeviceUsbStrings(i)
		if err != nil {
			devices = append(devices, DeviceInfo{Index: i, Name: rtl.GetDeviceName(i)})
			continue
		}
		devices = append(devices, DeviceInfo{
			Index: i,
			Name:  fmt.Sprintf("%s %s", manufacturer, product),
			ID:    serial,
		})
	}
	return devices, nil
}
