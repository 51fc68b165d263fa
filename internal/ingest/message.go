// Package ingest turns out-of-band event messages into correlator events.
//
// A message is an (identity, payload) pair. The payload is a JSON object:
//
//	{"offset": 96000, "length": 4800, "freq": [10300, 10900], "description": "meteor"}
//
// offset and length count sample frames from the start of the stream and are converted to
// rows with the pipeline hop (bins - overlap). freq is an optional baseband range in Hz;
// without it the event spans the whole frame.
package ingest

import (
	"github.com/antonholmquist/jason"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/events"
)

// Transport names used in logs, metrics and Event.Source
const (
	TransportSysEx = "sysex"
	TransportMQTT  = "mqtt"
)

// Message is one out-of-band event announcement
type Message struct {
	Identity  string
	Payload   []byte
	Transport string
}

// Geometry is the pipeline shape needed to place a message on the canvas
type Geometry struct {
	Bins       int
	Overlap    int
	SampleRate int
}

// Row converts a sample-frame offset to the row containing it
func (g Geometry) Row(offset int64) int64 {
	return offset / int64(g.Bins-g.Overlap)
}

// Freq2Bin maps a baseband frequency to a bin, clamped to [0, bins]
func (g Geometry) Freq2Bin(hz float64) int {
	b := int(hz*float64(g.Bins)/float64(g.SampleRate) + float64(g.Bins/2))
	return min(max(b, 0), g.Bins)
}

func (g Geometry) valid() bool {
	return g.Bins > 0 && g.SampleRate > 0 && g.Overlap >= 0 && g.Overlap < g.Bins
}

func malformed(msg Message, format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("ingest").
		Category(errors.CategoryEventIngest).
		Context("identity", msg.Identity).
		Context("transport", msg.Transport).
		Build()
}

// Parse converts msg into an event. Ingested events describe complete occurrences and are
// always final.
func Parse(msg Message, g Geometry) (events.Event, error) {
	if msg.Identity == "" {
		return events.Event{}, malformed(msg, "message without identity")
	}

	obj, err := jason.NewObjectFromBytes(msg.Payload)
	if err != nil {
		return events.Event{}, errors.New(err).
			Component("ingest").
			Category(errors.CategoryEventIngest).
			Context("identity", msg.Identity).
			Context("transport", msg.Transport).
			Context("operation", "decode_payload").
			Build()
	}

	offset, err := obj.GetFloat64("offset")
	if err != nil {
		return events.Event{}, malformed(msg, "payload offset missing or not a number")
	}
	if offset < 0 {
		return events.Event{}, malformed(msg, "negative offset %v", offset)
	}

	var length float64
	if v, err := obj.GetValue("length"); err == nil {
		if length, err = v.Float64(); err != nil || length < 0 {
			return events.Event{}, malformed(msg, "payload length must be a non-negative number")
		}
	}

	lo, hi := 0, g.Bins
	if _, err := obj.GetValue("freq"); err == nil {
		freq, err := obj.GetFloat64Array("freq")
		if err != nil || len(freq) != 2 {
			return events.Event{}, malformed(msg, "payload freq must be [lo_hz, hi_hz]")
		}
		if freq[0] > freq[1] {
			return events.Event{}, malformed(msg, "payload freq range %v..%v is inverted", freq[0], freq[1])
		}
		lo, hi = g.Freq2Bin(freq[0]), g.Freq2Bin(freq[1])
	}

	var description string
	if _, err := obj.GetValue("description"); err == nil {
		if description, err = obj.GetString("description"); err != nil {
			return events.Event{}, malformed(msg, "payload description must be a string")
		}
	}

	start := g.Row(int64(offset))
	end := max(g.Row(int64(offset+length)), start+1)

	return events.Event{
		Identity:    msg.Identity,
		StartRow:    start,
		EndRow:      end,
		BinLo:       lo,
		BinHi:       hi,
		Description: description,
		Final:       true,
		Source:      msg.Transport,
	}, nil
}
