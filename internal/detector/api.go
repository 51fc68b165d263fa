package detector

import (
	"math"
	"slices"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/events"
)

// Rows is a half-open row range
type Rows struct {
	Start, End int64
}

// Bins is a half-open bin range
type Bins struct {
	Lo, Hi int
}

// API is the whole surface a detector sees. Each attached detector gets its own API, so
// plots and the work-in-progress event are private to it.
type API struct {
	name        string
	bins        int
	sampleRate  int
	rowDuration float64

	row     int64
	plots   *plotSet
	sink    events.Sink
	wip     *events.Event
	onEmit  func()
	scratch []float32
}

// Bins is the frame length
func (a *API) Bins() int { return a.bins }

// SampleRate is the input sample rate in Hz
func (a *API) SampleRate() int { return a.sampleRate }

// RowDuration is the time step between frames in seconds
func (a *API) RowDuration() float64 { return a.rowDuration }

// Rows converts a duration in seconds to whole rows, truncating
func (a *API) Rows(seconds float64) int64 {
	return int64(seconds / a.rowDuration)
}

// Freq2Bin maps a baseband frequency in Hz to a bin of the fftshifted frame
func (a *API) Freq2Bin(hz float64) int {
	return int(hz*float64(a.bins)/float64(a.sampleRate) + float64(a.bins/2))
}

// Bin2Freq maps a bin of the fftshifted frame to its baseband frequency in Hz
func (a *API) Bin2Freq(bin int) float64 {
	return float64(bin-a.bins/2) / float64(a.bins) * float64(a.sampleRate)
}

// Band converts a frequency range to bins and rejects ranges outside the frame
func (a *API) Band(loHz, hiHz float64) (Bins, error) {
	b := Bins{Lo: a.Freq2Bin(loHz), Hi: a.Freq2Bin(hiHz)}
	if b.Lo < 0 || b.Hi > a.bins || b.Lo >= b.Hi {
		return Bins{}, errors.Newf("band %.0f..%.0f Hz maps to bins [%d, %d), outside [0, %d)", loHz, hiHz, b.Lo, b.Hi, a.bins).
			Component("detector").
			Category(errors.CategoryConfiguration).
			Context("detector", a.name).
			Context("sample_rate", a.sampleRate).
			Build()
	}
	return b, nil
}

// Peak returns the maximum of s[lo:hi] and its index
func (a *API) Peak(lo, hi int, s []float32) (float32, int) {
	return Peak(lo, hi, s)
}

// Noise returns twice the first-quartile value of s
func (a *API) Noise(s []float32) float32 {
	a.scratch = append(a.scratch[:0], s...)
	slices.Sort(a.scratch)
	return a.scratch[len(a.scratch)/4] * 2
}

// Plot records value for the current row in the named series
func (a *API) Plot(name string, value float64) {
	a.plots.get(name, SeriesValue).Set(a.row, value)
}

// PlotBin records a bin position for the current row, scaled to [-1, 1]
func (a *API) PlotBin(name string, bin int) {
	a.plots.get(name, SeriesBin).Set(a.row, float64(bin)/float64(a.bins)*2-1)
}

// PlotFreq records a frequency position for the current row
func (a *API) PlotFreq(name string, hz float64) {
	a.PlotBin(name, a.Freq2Bin(hz))
}

// Emit sends an event to the correlator. Emitting again with the same identity and
// start row updates the same occurrence.
func (a *API) Emit(identity string, rows Rows, bins Bins, description string) {
	a.send(a.event(identity, rows, bins, description, false))
}

// EmitFinal is Emit for the last update of an occurrence
func (a *API) EmitFinal(identity string, rows Rows, bins Bins, description string) {
	a.send(a.event(identity, rows, bins, description, true))
}

// Event opens a work-in-progress mark, replacing any open one. The mark is shown while
// in progress and committed by Final.
func (a *API) Event(rows Rows, bins Bins, description string) {
	ev := a.event(a.name, rows, bins, description, false)
	a.wip = &ev
	a.send(ev)
}

// Cut moves the end row of the open mark. It does nothing when no mark is open.
func (a *API) Cut(row int64) {
	if a.wip == nil {
		return
	}
	a.wip.EndRow = row
	a.send(*a.wip)
}

// Final commits the open mark. It does nothing when no mark is open.
func (a *API) Final() {
	if a.wip == nil {
		return
	}
	a.wip.Final = true
	a.send(*a.wip)
	a.wip = nil
}

func (a *API) event(identity string, rows Rows, bins Bins, description string, final bool) events.Event {
	return events.Event{
		Identity:    identity,
		StartRow:    rows.Start,
		EndRow:      rows.End,
		BinLo:       bins.Lo,
		BinHi:       bins.Hi,
		Description: description,
		Final:       final,
		Source:      a.name,
	}
}

func (a *API) send(ev events.Event) {
	if a.sink != nil {
		a.sink.Upsert(ev)
	}
	if a.onEmit != nil {
		a.onEmit()
	}
}

// Peak returns the maximum of s[lo:hi] and its index in s. NaN samples never win.
func Peak(lo, hi int, s []float32) (float32, int) {
	best, at := float32(math.Inf(-1)), lo
	for i := lo; i < hi; i++ {
		if s[i] > best {
			best, at = s[i], i
		}
	}
	return best, at
}

// Noise returns twice the first-quartile value of s, a floor estimate that ignores
// transient peaks. s is not modified.
func Noise(s []float32) float32 {
	sorted := slices.Clone(s)
	slices.Sort(sorted)
	return sorted[len(sorted)/4] * 2
}

// Mean is the arithmetic mean of s, or NaN when s is empty
func Mean(s []float32) float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range s {
		sum += float64(v)
	}
	return sum / float64(len(s))
}

// MidQuartileLevel sums the middle half of the sorted values and divides by len/2
func MidQuartileLevel(s []float64) float64 {
	n := len(s)
	if n < 2 {
		if n == 1 {
			return s[0]
		}
		return math.NaN()
	}
	sorted := slices.Clone(s)
	slices.Sort(sorted)
	var sum float64
	for _, v := range sorted[n/4 : 3*n/4] {
		sum += v
	}
	return sum / float64(n/2)
}
