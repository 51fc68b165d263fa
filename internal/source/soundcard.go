package source

import (
	"context"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/logger"
)

// soundcardRingSeconds is how much capture the staging ring holds
const soundcardRingSeconds = 2

// DeviceInfo describes one capture device
type DeviceInfo struct {
	Index int
	Name  string
	ID    string
}

// SoundcardSource captures stereo float32 audio as I/Q: left is I, right is Q
type SoundcardSource struct {
	device     string
	sampleRate int

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	dev      *malgo.Device
	ring     *sampleRing
	buf      []byte
	done     chan struct{}
	closed   bool
	onDrop   func()
}

// NewSoundcardSource creates a capture source. An empty device selects the system default;
// otherwise the first device whose name or ID contains device is used.
func NewSoundcardSource(device string, sampleRate int) *SoundcardSource {
	return &SoundcardSource{
		device:     device,
		sampleRate: sampleRate,
		done:       make(chan struct{}),
	}
}

func (s *SoundcardSource) Name() string {
	if s.device == "" {
		return "soundcard input 'default'"
	}
	return fmt.Sprintf("soundcard input '%s'", s.device)
}

func (s *SoundcardSource) SampleRate() int { return s.sampleRate }

// OnDrop registers a callback run whenever a capture period is dropped on overrun
func (s *SoundcardSource) OnDrop(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDrop = fn
}

// Overruns is the number of capture periods dropped because the reader fell behind
func (s *SoundcardSource) Overruns() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring == nil {
		return 0
	}
	return s.ring.Overruns()
}

// captureBackend picks the native backend for the platform
func captureBackend() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

// Start opens and starts the capture device
func (s *SoundcardSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev != nil {
		return nil
	}
	if s.closed {
		return ErrSourceClosed
	}

	log := GetLogger()
	malgoCtx, err := malgo.InitContext(captureBackend(), malgo.ContextConfig{}, func(message string) {
		log.Debug("malgo", logger.String("message", strings.TrimSpace(message)))
	})
	if err != nil {
		return errors.New(err).
			Component("source").
			Category(errors.CategorySampleSource).
			Context("operation", "init_audio_context").
			Build()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 2
	deviceConfig.SampleRate = uint32(s.sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if s.device != "" {
		infos, err := malgoCtx.Devices(malgo.Capture)
		if err != nil {
			_ = malgoCtx.Uninit()
			malgoCtx.Free()
			return errors.New(err).
				Component("source").
				Category(errors.CategorySampleSource).
				Context("operation", "enumerate_capture_devices").
				Build()
		}
		idx := matchDevice(infos, s.device)
		if idx < 0 {
			_ = malgoCtx.Uninit()
			malgoCtx.Free()
			return errors.Newf("capture device %q not found", s.device).
				Component("source").
				Category(errors.CategoryNotFound).
				Context("device", s.device).
				Build()
		}
		deviceConfig.Capture.DeviceID = infos[idx].ID.Pointer()
	}

	ring := newSampleRing(s.sampleRate * rawPairBytes * soundcardRingSeconds)
	onDrop := s.onDrop
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			if !ring.write(in) && onDrop != nil {
				onDrop()
			}
		},
		Stop: func() {
			log.Warn("capture device stopped")
		},
	}

	dev, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
		return errors.New(err).
			Component("source").
			Category(errors.CategorySampleSource).
			Context("operation", "init_capture_device").
			Context("device", s.device).
			Build()
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
		return errors.New(err).
			Component("source").
			Category(errors.CategorySampleSource).
			Context("operation", "start_capture_device").
			Build()
	}

	s.malgoCtx = malgoCtx
	s.dev = dev
	s.ring = ring
	log.Info("capture started", logger.String("device", s.Name()), logger.Int("sample_rate", s.sampleRate))
	return nil
}

// Read waits until enough captured samples exist to fill dst
func (s *SoundcardSource) Read(ctx context.Context, dst []complex64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSourceClosed
	}
	ring := s.ring
	if ring == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	need := len(dst) * rawPairBytes
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]
	s.mu.Unlock()

	if err := ring.readFull(ctx, buf, s.done); err != nil {
		return err
	}
	decodeFloat32Pairs(dst, buf)
	return nil
}

// Close stops capture and releases the audio context
func (s *SoundcardSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	if s.dev != nil {
		_ = s.dev.Stop()
		s.dev.Uninit()
	}
	if s.malgoCtx != nil {
		err := s.malgoCtx.Uninit()
		s.malgoCtx.Free()
		return err
	}
	return nil
}

// ListCaptureDevices enumerates capture devices on the native backend
func ListCaptureDevices() ([]DeviceInfo, error) {
	malgoCtx, err := malgo.InitContext(captureBackend(), malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("source").
			Category(errors.CategorySampleSource).
			Context("operation", "init_audio_context").
			Build()
	}
	defer func() {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
	}()

	infos, err := malgoCtx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.New(err).
			Component("source").
			Category(errors.CategorySampleSource).
			Context("operation", "enumerate_capture_devices").
			Build()
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		devices = append(devices, DeviceInfo{
			Index: i,
			Name:  infos[i].Name(),
			ID:    decodeDeviceID(infos[i].ID.String()),
		})
	}
	return devices, nil
}

// matchDevice returns the index of the first device whose name or decoded ID contains want
func matchDevice(infos []malgo.DeviceInfo, want string) int {
	for i := range infos {
		if strings.Contains(infos[i].Name(), want) || strings.Contains(decodeDeviceID(infos[i].ID.String()), want) {
			return i
		}
	}
	return -1
}

// decodeDeviceID turns malgo's hex device ID into the backend's textual ID (e.g. "hw:1,0")
func decodeDeviceID(hexID string) string {
	raw, err := hex.DecodeString(hexID)
	if err != nil {
		return hexID
	}
	return strings.TrimRight(string(raw), "\x00")
}
