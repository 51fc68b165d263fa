package ingest

import (
	"bufio"
	"bytes"
	"io"

	"github.com/MLAB-project/pysdr/internal/errors"
)

// SysEx framing: F0 7D <identity> ' ' <json> F7. 0x7D is the non-commercial
// manufacturer id.
const (
	sysexStart        = 0xF0
	sysexEnd          = 0xF7
	sysexManufacturer = 0x7D

	// DefaultMaxFrame bounds the body of one SysEx frame
	DefaultMaxFrame = 4096
)

// ErrFraming marks a frame that could not be decoded. The reader has already resynchronised
// and the next call to Next continues with the following frame.
var ErrFraming = errors.Newf("malformed sysex frame").
	Component("ingest").
	Category(errors.CategoryEventIngest).
	Build()

// SysExReader splits a byte stream into messages
type SysExReader struct {
	r        *bufio.Reader
	maxFrame int
	body     []byte
}

// NewSysExReader wraps r. maxFrame <= 0 selects DefaultMaxFrame.
func NewSysExReader(r io.Reader, maxFrame int) *SysExReader {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrame
	}
	return &SysExReader{r: bufio.NewReader(r), maxFrame: maxFrame}
}

func framing(reason string) error {
	return errors.New(ErrFraming).
		Component("ingest").
		Category(errors.CategoryEventIngest).
		Context("reason", reason).
		Build()
}

// Next returns the next message. Bytes outside frames are skipped. A framing error
// wraps ErrFraming; io.EOF is returned when the stream ends between frames.
func (s *SysExReader) Next() (Message, error) {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return Message{}, err
		}
		if b == sysexStart {
			break
		}
	}

	id, err := s.r.ReadByte()
	if err != nil {
		return Message{}, framing("truncated header")
	}
	if id != sysexManufacturer {
		if id == sysexStart {
			_ = s.r.UnreadByte()
		}
		return Message{}, framing("foreign manufacturer id")
	}

	s.body = s.body[:0]
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return Message{}, framing("stream ended inside frame")
		}
		switch {
		case b == sysexEnd:
			return s.split()
		case b == sysexStart:
			_ = s.r.UnreadByte()
			return Message{}, framing("frame interrupted by new start byte")
		case b >= 0xF8:
			// realtime bytes may interleave with any message
			continue
		case b >= 0x80:
			return Message{}, framing("status byte inside frame")
		}
		if len(s.body) == s.maxFrame {
			return Message{}, framing("frame too long")
		}
		s.body = append(s.body, b)
	}
}

func (s *SysExReader) split() (Message, error) {
	identity, payload, ok := bytes.Cut(s.body, []byte{' '})
	if !ok || len(identity) == 0 {
		return Message{}, framing("missing identity")
	}
	return Message{
		Identity:  string(identity),
		Payload:   bytes.Clone(payload),
		Transport: TransportSysEx,
	}, nil
}
