package detector

import (
	"fmt"
	"math"

	"github.com/MLAB-project/pysdr/internal/spectral"
)

// MeasurementIdentity is the event identity of noise level measurement windows
const MeasurementIdentity = "mlab.aabb_event.measurement_area"

// noiseLevel tracks the broadband noise level of the log frame. It plots the level every
// row and periodically marks a measurement window across the whole band, labelling it
// with the level measured over that window once it closes.
type noiseLevel struct {
	api      *API
	settle   int64
	interval int64
	window   int64

	next      int64
	measuring bool
	start     int64
	samples   []float64
	levels    []float64
}

func init() {
	Register("noise_level", Params{
		"settle":   1.0,
		"interval": 10.0,
		"duration": 1.0,
	}, func(api *API, p Params) (Detector, error) {
		window := int64(math.Ceil(p["duration"] / api.RowDuration()))
		if window < 1 {
			return nil, fmt.Errorf("noise_level duration %.3f s is shorter than one row", p["duration"])
		}
		interval := max(api.Rows(p["interval"]), window)
		settle := max(api.Rows(p["settle"]), 0)
		return &noiseLevel{
			api:      api,
			settle:   settle,
			interval: interval,
			window:   window,
			next:     settle,
			samples:  make([]float64, 0, window),
		}, nil
	})
}

// Run implements Detector
func (d *noiseLevel) Run(row int64, frame *spectral.Frame) error {
	d.levels = d.levels[:0]
	for _, v := range frame.Log {
		d.levels = append(d.levels, float64(v))
	}
	level := MidQuartileLevel(d.levels)
	d.api.Plot("noise", level/5)

	all := Bins{Lo: 0, Hi: d.api.Bins()}
	if !d.measuring && row >= d.next {
		d.measuring = true
		d.start = row
		d.samples = d.samples[:0]
		d.api.Emit(MeasurementIdentity, Rows{Start: row, End: row + d.window}, all, "measuring")
	}
	if !d.measuring {
		return nil
	}

	d.samples = append(d.samples, level)
	if int64(len(d.samples)) < d.window {
		return nil
	}
	d.api.EmitFinal(MeasurementIdentity, Rows{Start: d.start, End: d.start + d.window}, all,
		fmt.Sprintf("noise %.2f dB", MidQuartileLevel(d.samples)))
	d.measuring = false
	d.next = d.start + d.interval
	return nil
}
