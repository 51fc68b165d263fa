//go:build !rtlsdr

package source

import (
	"context"
	"fmt"
)

// RTLSDRSource is a placeholder in builds without the rtlsdr tag; Start always fails
type RTLSDRSource struct {
	index int
	rate  int
}

// NewRTLSDRSource returns a source whose Start reports ErrUnsupported
func NewRTLSDRSource(index, _, sampleRate, _ int) Source {
	return &RTLSDRSource{index: index, rate: sampleRate}
}

func (s *RTLSDRSource) Name() string    { return fmt.Sprintf("rtlsdr input #%d", s.index) }
func (s *RTLSDRSource) SampleRate() int { return s.rate }

func (s *RTLSDRSource) Start(context.Context) error {
	return fmt.Errorf("rtlsdr input: rebuild with -tags rtlsdr: %w", ErrUnsupported)
}

func (s *RTLSDRSource) Read(context.Context, []complex64) error { return ErrNotStarted }
func (s *RTLSDRSource) Close() error                            { return nil }

// ListRTLSDRDevices reports ErrUnsupported in builds without the rtlsdr tag
func ListRTLSDRDevices() ([]DeviceInfo, error) {
	return nil, ErrUnsupported
}
