package detector

import (
	"fmt"
	"math"

	"github.com/MLAB-project/pysdr/internal/spectral"
)

// MeteorEchoIdentity is the event identity of streamed meteor echo detections
const MeteorEchoIdentity = "mlab.aabb_event.meteor_echo"

// echoMode selects how a detection is reported
type echoMode int

const (
	// echoWIP opens, cuts and finalizes a work-in-progress mark
	echoWIP echoMode = iota
	// echoStream re-emits the ongoing occurrence on every detection
	echoStream
)

// echoDetector watches a narrow band for a reflected carrier rising above the noise floor.
//
// Idle becomes ongoing when ln(signal/noise) crosses the threshold. While ongoing, every
// new crossing pushes the end row out to row+timeout. Once timeout rows pass without a
// crossing the occurrence is closed and the detector is idle again.
type echoDetector struct {
	api  *API
	mode echoMode

	peak      Bins
	noise     Bins
	avg       Bins // fixed signal band; empty means peak ± spread
	meanNoise bool // mean of the noise band instead of the quartile estimate
	spread    int
	threshold float64
	timeout   int64
	lead      int64

	state echoState
}

// echoState is everything that changes between frames
type echoState struct {
	ongoing    bool
	lastDetect int64
	occurrence Rows
	bins       Bins
	label      string
}

func init() {
	Register("meteor_echo", Params{
		"peak_lo":   10300,
		"peak_hi":   10900,
		"noise_lo":  9000,
		"noise_hi":  9600,
		"spread":    100,
		"threshold": 0.7,
		"timeout":   1.6,
		"lead":      0.5,
	}, func(api *API, p Params) (Detector, error) {
		return newEchoDetector(api, p, echoWIP, false)
	})

	Register("meteor_echo_stream", Params{
		"peak_lo":   10500,
		"peak_hi":   10700,
		"noise_lo":  11000,
		"noise_hi":  11500,
		"spread":    100,
		"threshold": 0.7,
		"timeout":   1.6,
		"lead":      0.5,
	}, func(api *API, p Params) (Detector, error) {
		return newEchoDetector(api, p, echoStream, false)
	})

	Register("meteor_echo_avg", Params{
		"peak_lo":   26400,
		"peak_hi":   26600,
		"avg_lo":    26450,
		"avg_hi":    26550,
		"noise_lo":  25000,
		"noise_hi":  26000,
		"spread":    100,
		"threshold": 0.7,
		"timeout":   1.6,
		"lead":      0.5,
	}, func(api *API, p Params) (Detector, error) {
		return newEchoDetector(api, p, echoStream, true)
	})
}

func newEchoDetector(api *API, p Params, mode echoMode, avgBand bool) (*echoDetector, error) {
	d := &echoDetector{
		api:       api,
		mode:      mode,
		meanNoise: avgBand,
		spread:    api.Freq2Bin(p["spread"]) - api.Freq2Bin(0),
		threshold: p["threshold"],
		timeout:   api.Rows(p["timeout"]),
		lead:      api.Rows(p["lead"]),
	}

	var err error
	if d.peak, err = api.Band(p["peak_lo"], p["peak_hi"]); err != nil {
		return nil, err
	}
	if d.noise, err = api.Band(p["noise_lo"], p["noise_hi"]); err != nil {
		return nil, err
	}
	if avgBand {
		if d.avg, err = api.Band(p["avg_lo"], p["avg_hi"]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Run implements Detector
func (d *echoDetector) Run(row int64, frame *spectral.Frame) error {
	s := frame.Linear
	_, peakBin := d.api.Peak(d.peak.Lo, d.peak.Hi, s)
	around := Bins{Lo: max(peakBin-d.spread, 0), Hi: min(peakBin+d.spread, len(s))}

	var signal, noise float64
	if d.avg.Hi > d.avg.Lo {
		signal = Mean(s[d.avg.Lo:d.avg.Hi])
	} else {
		signal = Mean(s[around.Lo:around.Hi])
	}
	if d.meanNoise {
		noise = Mean(s[d.noise.Lo:d.noise.Hi])
	} else {
		noise = float64(d.api.Noise(s[d.noise.Lo:d.noise.Hi]))
	}

	sn := math.Log(signal / noise)
	d.api.Plot("sn", sn)

	st := &d.state
	switch {
	case sn > d.threshold:
		st.lastDetect = row
		if !st.ongoing {
			st.ongoing = true
			st.occurrence = Rows{Start: row - d.lead, End: row + d.timeout}
			st.bins = around
			st.label = fmt.Sprintf("@ %.3f kHz", d.api.Bin2Freq(peakBin)/1000)
			if d.mode == echoWIP {
				d.api.Event(st.occurrence, st.bins, st.label)
				return nil
			}
		}
		st.occurrence.End = row + d.timeout
		if d.mode == echoWIP {
			d.api.Cut(st.occurrence.End)
		} else {
			d.api.Emit(MeteorEchoIdentity, st.occurrence, st.bins, st.label)
		}
	case st.ongoing && row-st.lastDetect > d.timeout:
		if d.mode == echoWIP {
			d.api.Final()
		} else {
			d.api.EmitFinal(MeteorEchoIdentity, st.occurrence, st.bins, st.label)
		}
		d.state = echoState{}
	}
	return nil
}
