// Package spectral turns a complex sample stream into overlapping spectral frames.
//
// Each frame analyses the newest Bins samples, of which Overlap are shared with the previous
// frame. The samples live in a ring four frames long; when the write cursor would run past
// the end, the trailing Overlap samples are copied to the start. That copy is the only data
// movement in the pipeline.
package spectral

import (
	"context"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/MLAB-project/pysdr/internal/errors"
)

// ringFrames is the ring capacity in frames
const ringFrames = 4

// magnitudeFloor keeps log10 finite for empty bins
const magnitudeFloor = 1e-20

// SampleReader is the part of a sample source the pipeline consumes
type SampleReader interface {
	Read(ctx context.Context, dst []complex64) error
}

// Config describes a pipeline
type Config struct {
	Bins       int // FFT size
	Overlap    int // samples shared between consecutive frames, 0 <= Overlap < Bins
	TileWidth  int // display tile width; Bins must be a multiple of it
	LogScale   int // 10 for power-style dB, 20 for amplitude-style dB
	SampleRate int
}

// Frame is one spectral snapshot. Linear holds FFT magnitudes, Log holds LogScale*log10 of
// them; both are fftshifted so bin Bins/2 is zero frequency.
type Frame struct {
	Row    uint64
	Linear []float32
	Log    []float32
}

// Pipeline is the overlap-add spectral producer. It is owned by one producer goroutine.
type Pipeline struct {
	cfg      Config
	readSize int

	ring []complex64
	edge int

	window []float64
	fft    *fourier.CmplxFFT
	work   []complex128
	coeffs []complex128
	mags   []float32

	row uint64
}

// New validates cfg and allocates the pipeline
func New(cfg Config) (*Pipeline, error) {
	if cfg.TileWidth <= 0 {
		return nil, configError("tile width must be positive", cfg)
	}
	if cfg.Bins <= 0 || cfg.Bins%cfg.TileWidth != 0 {
		return nil, configError("bins must be a positive multiple of the tile width", cfg)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Bins {
		return nil, configError("overlap must be within [0, bins)", cfg)
	}
	if cfg.SampleRate <= 0 {
		return nil, configError("sample rate must be positive", cfg)
	}
	switch cfg.LogScale {
	case 0:
		cfg.LogScale = 10
	case 10, 20:
	default:
		return nil, configError("log scale must be 10 or 20", cfg)
	}

	return &Pipeline{
		cfg:      cfg,
		readSize: cfg.Bins - cfg.Overlap,
		ring:     make([]complex64, cfg.Bins*ringFrames),
		edge:     cfg.Bins,
		window:   hann(cfg.Bins),
		fft:      fourier.NewCmplxFFT(cfg.Bins),
		work:     make([]complex128, cfg.Bins),
		coeffs:   make([]complex128, cfg.Bins),
		mags:     make([]float32, cfg.Bins),
	}, nil
}

func configError(msg string, cfg Config) error {
	return errors.Newf("invalid spectral configuration: %s", msg).
		Component("spectral").
		Category(errors.CategoryConfiguration).
		Context("bins", cfg.Bins).
		Context("overlap", cfg.Overlap).
		Context("tile_width", cfg.TileWidth).
		Context("log_scale", cfg.LogScale).
		Build()
}

// Bins is the FFT size
func (p *Pipeline) Bins() int { return p.cfg.Bins }

// Overlap is the number of samples shared between frames
func (p *Pipeline) Overlap() int { return p.cfg.Overlap }

// ReadSize is the number of new samples consumed per frame
func (p *Pipeline) ReadSize() int { return p.readSize }

// SampleRate is the input rate the pipeline was built for
func (p *Pipeline) SampleRate() int { return p.cfg.SampleRate }

// RowDuration is the time step between frames in seconds
func (p *Pipeline) RowDuration() float64 {
	return float64(p.readSize) / float64(p.cfg.SampleRate)
}

// NextRow is the row index the next frame will carry
func (p *Pipeline) NextRow() uint64 { return p.row }

// makeRoom moves the trailing overlap to the ring start when the next read would not fit
func (p *Pipeline) makeRoom() {
	if p.edge+p.readSize > len(p.ring) {
		copy(p.ring[:p.cfg.Overlap], p.ring[p.edge-p.cfg.Overlap:p.edge])
		p.edge = p.cfg.Overlap
	}
}

// Produce reads ReadSize samples from r and returns the next frame. A read error is
// returned as is; no frame is produced and the row counter does not advance.
func (p *Pipeline) Produce(ctx context.Context, r SampleReader) (*Frame, error) {
	p.makeRoom()
	if err := r.Read(ctx, p.ring[p.edge:p.edge+p.readSize]); err != nil {
		return nil, err
	}
	p.edge += p.readSize
	return p.transform(), nil
}

// Process appends exactly ReadSize samples and returns the next frame
func (p *Pipeline) Process(samples []complex64) (*Frame, error) {
	if len(samples) != p.readSize {
		return nil, errors.Newf("sample block has %d samples, want %d", len(samples), p.readSize).
			Component("spectral").
			Category(errors.CategoryValidation).
			Build()
	}
	p.makeRoom()
	copy(p.ring[p.edge:], samples)
	p.edge += p.readSize
	return p.transform(), nil
}

// transform windows the newest Bins samples, runs the FFT and builds the frame
func (p *Pipeline) transform() *Frame {
	bins := p.cfg.Bins
	signal := p.ring[p.edge-bins : p.edge]
	for i, s := range signal {
		p.work[i] = complex128(s) * complex(p.window[i], 0)
	}
	p.fft.Coefficients(p.coeffs, p.work)

	for i, c := range p.coeffs {
		p.mags[i] = float32(cmplx.Abs(c))
	}

	frame := &Frame{
		Row:    p.row,
		Linear: make([]float32, bins),
		Log:    make([]float32, bins),
	}
	fftShift(frame.Linear, p.mags)

	scale := float64(p.cfg.LogScale)
	for i, v := range frame.Linear {
		frame.Log[i] = float32(scale * math.Log10(max(float64(v), magnitudeFloor)))
	}

	p.row++
	return frame
}

// Run produces frames until r fails or ctx ends, handing each to sink in row order.
// Source errors are fatal and returned wrapped with the row that was being produced.
func (p *Pipeline) Run(ctx context.Context, r SampleReader, sink func(*Frame) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := p.Produce(ctx, r)
		if err != nil {
			return errors.New(err).
				Component("spectral").
				Category(errors.CategorySampleSource).
				Context("operation", "read_samples").
				Context("row", p.row).
				Build()
		}
		if err := sink(frame); err != nil {
			return err
		}
	}
}
