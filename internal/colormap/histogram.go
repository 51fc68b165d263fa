package colormap

// Histogram geometry for the range selector
const (
	HistogramBins = 90
	HistogramLo   = -60.0
	HistogramHi   = 20.0
)

// Histogram counts log-magnitude values over [HistogramLo, HistogramHi) dB.
// Values outside the window are clamped into the edge bins.
func Histogram(frame []float32) [HistogramBins]int {
	var h [HistogramBins]int
	const width = (HistogramHi - HistogramLo) / HistogramBins
	for _, v := range frame {
		if v != v { // NaN
			continue
		}
		idx := int((float64(v) - HistogramLo) / width)
		idx = max(0, min(idx, HistogramBins-1))
		h[idx]++
	}
	return h
}

// BinEdge returns the dB value at the lower edge of histogram bin i
func BinEdge(i int) float64 {
	return HistogramLo + float64(i)*(HistogramHi-HistogramLo)/HistogramBins
}
