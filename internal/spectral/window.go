package spectral

import "math"

// hann returns the periodic raised-cosine window of length n
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

// fftShift rotates src by half its length into dst so zero frequency lands at len/2
func fftShift(dst, src []float32) {
	half := len(src) / 2
	copy(dst, src[half:])
	copy(dst[len(src)-half:], src[:half])
}
