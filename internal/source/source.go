// Package source provides the complex sample streams that feed the spectral pipeline.
//
// Every source delivers interleaved I/Q pairs as complex64 values at a fixed rate.
// Read fills the whole destination or fails; a stream that ends returns io.EOF.
package source

import (
	"context"
	"io"

	"github.com/MLAB-project/pysdr/internal/conf"
	"github.com/MLAB-project/pysdr/internal/errors"
)

// Source is a stream of complex baseband samples
type Source interface {
	// Name identifies the source in logs and metrics
	Name() string
	// SampleRate is the number of complex samples per second
	SampleRate() int
	// Start opens the underlying device or file. Read must not be called before Start.
	Start(ctx context.Context) error
	// Read fills dst completely. It returns io.EOF once the stream is exhausted and
	// ErrSourceClosed after Close.
	Read(ctx context.Context, dst []complex64) error
	// Close releases the device or file. It is safe to call more than once.
	Close() error
}

// Error sentinel values shared by all sources
var (
	// ErrSourceClosed is returned by Read after Close
	ErrSourceClosed = errors.Newf("sample source closed").
			Component("source").
			Category(errors.CategorySampleSource).
			Build()

	// ErrNotStarted is returned by Read before Start
	ErrNotStarted = errors.Newf("sample source not started").
			Component("source").
			Category(errors.CategoryState).
			Build()

	// ErrUnsupported is returned for a source kind this binary was built without
	ErrUnsupported = errors.Newf("sample source not supported by this build").
			Component("source").
			Category(errors.CategoryConfiguration).
			Build()
)

// IsEndOfStream reports whether err marks a normal end of input
func IsEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, ErrSourceClosed)
}

// New creates the source selected by settings.Input
func New(settings *conf.Settings) (Source, error) {
	in := settings.Input
	switch in.Kind {
	case conf.InputRaw:
		return NewRawSource(in.Path, in.SampleRate), nil
	case conf.InputWAV:
		return NewWAVSource(in.Path), nil
	case conf.InputSoundcard:
		return NewSoundcardSource(in.Device, in.SampleRate), nil
	case conf.InputRTLSDR:
		return NewRTLSDRSource(in.RTLSDR.Index, in.RTLSDR.Frequency, in.SampleRate, in.RTLSDR.Gain), nil
	case conf.InputSynthetic:
		tones := make([]Tone, 0, len(in.Synthetic.Tones))
		for _, t := range in.Synthetic.Tones {
			tones = append(tones, Tone{Frequency: t.Frequency, Amplitude: t.Amplitude})
		}
		return NewSyntheticSource(SyntheticConfig{
			SampleRate: in.SampleRate,
			Tones:      tones,
			Noise:      in.Synthetic.Noise,
			Seed:       in.Synthetic.Seed,
			Limit:      in.Synthetic.Limit,
		}), nil
	default:
		return nil, errors.Newf("unknown input kind %q", in.Kind).
			Component("source").
			Category(errors.CategoryConfiguration).
			Context("kind", in.Kind).
			Build()
	}
}
