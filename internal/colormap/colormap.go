// Package colormap maps log-magnitude spectra onto the waterfall palette.
//
// The palette runs black, blue, purple, red, orange, yellow to white as the normalised
// magnitude rises from -2.75 to 1. Scaler converts dB values into that range.
package colormap

import (
	"math"
	"sync/atomic"
)

// Default magnitude window in dB
const (
	DefaultMagLo = -45.0
	DefaultMagHi = 5.0
)

// span is the width of the normalised palette domain
const span = 3.75

// minRange keeps the scale finite when lo == hi
const minRange = 1e-5

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// blue is the blue channel ramp: up, down, off, then up again toward white
func blue(v float32) float32 {
	switch {
	case v <= -2.75:
		return 0
	case v <= -1.75:
		return v + 2.75
	case v <= -0.75:
		return -(v + 0.75)
	case v <= 0:
		return 0
	case v >= 1:
		return 1
	default:
		return v
	}
}

// Mag2Col converts a normalised magnitude into a packed RGBA8888 pixel (R in the top byte)
func Mag2Col(v float32) uint32 {
	r := uint32(clamp01(v+1) * 255)
	g := uint32(clamp01(v) * 255)
	b := uint32(blue(v-1) * 255)
	return r<<24 | g<<16 | b<<8 | 0xff
}

// RGBA splits a packed pixel into channels
func RGBA(px uint32) (r, g, b, a uint8) {
	return uint8(px >> 24), uint8(px >> 16), uint8(px >> 8), uint8(px)
}

type scale struct {
	lo, hi       float64
	factor, bias float32
}

func newScale(lo, hi float64) *scale {
	width := hi - lo
	if math.Abs(width) < minRange {
		width = minRange
	}
	factor := span / width
	return &scale{
		lo:     lo,
		hi:     hi,
		factor: float32(factor),
		bias:   float32(-lo*factor - 1.75),
	}
}

// Scaler maps dB values onto the palette. The range may be changed while rows are being
// coloured; each row sees one consistent range.
type Scaler struct {
	cur atomic.Pointer[scale]
}

// NewScaler creates a scaler for the [lo, hi] dB window
func NewScaler(lo, hi float64) *Scaler {
	s := &Scaler{}
	s.SetRange(lo, hi)
	return s
}

// SetRange replaces the dB window
func (s *Scaler) SetRange(lo, hi float64) {
	s.cur.Store(newScale(lo, hi))
}

// Range returns the current dB window
func (s *Scaler) Range() (lo, hi float64) {
	c := s.cur.Load()
	return c.lo, c.hi
}

// Normalize maps one dB value into palette space
func (s *Scaler) Normalize(db float32) float32 {
	c := s.cur.Load()
	return db*c.factor + c.bias
}

// Row colours a log-magnitude frame into dst. dst must be at least as long as frame.
func (s *Scaler) Row(dst []uint32, frame []float32) {
	c := s.cur.Load()
	for i, v := range frame {
		dst[i] = Mag2Col(v*c.factor + c.bias)
	}
}
