package tui

import (
	"context"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MLAB-project/pysdr/internal/conf"
	"github.com/MLAB-project/pysdr/internal/events"
	"github.com/MLAB-project/pysdr/internal/runtime"
	"github.com/MLAB-project/pysdr/internal/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newSession(t *testing.T, rows int64) *runtime.Session {
	t.Helper()
	settings := &conf.Settings{}
	settings.Input.Kind = conf.InputSynthetic
	settings.Spectral = conf.SpectralSettings{Bins: 256, Overlap: 0.5, LogScale: 10, TileWidth: 64, TileHeight: 64}
	settings.Display = conf.DisplaySettings{MagLo: -45, MagHi: 5, QueueCapacity: 512, DrainLimit: 512}
	settings.Events = conf.EventSettings{BufferSize: 16, Workers: 1}
	settings.Detectors = []conf.DetectorSettings{{Name: "noise", Kind: "noise_level", Enabled: true}}

	src := source.NewSyntheticSource(source.SyntheticConfig{
		SampleRate: 48000,
		Tones:      []source.Tone{{Frequency: 3000, Amplitude: 0.5}},
		Noise:      0.01,
		Seed:       7,
		Limit:      rows * 128,
	})
	s, err := runtime.NewSession(context.Background(), settings, src)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTickDrainsAndDetectsEnd(t *testing.T) {
	s := newSession(t, 30)
	require.NoError(t, s.Produce(context.Background()))

	m := New(s, 60)
	next, cmd := m.Update(tickMsg(time.Now()))
	require.NotNil(t, cmd)
	m = next.(Model)
	assert.Equal(t, uint64(30), s.TextureRow())
	assert.True(t, m.ended)
	assert.Contains(t, m.View(), "SOURCE ENDED")
}

func TestViewFillsTerminal(t *testing.T) {
	s := newSession(t, 40)
	require.NoError(t, s.Produce(context.Background()))

	var m tea.Model = New(s, 30)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	m, _ = m.Update(tickMsg(time.Now()))

	view := m.View()
	assert.Equal(t, 20, strings.Count(view, "\n")+1)
	assert.Contains(t, view, "pysdr")
	assert.Contains(t, view, "synthetic input")
	assert.Contains(t, view, "noise.noise", "value plot strip")
	assert.Contains(t, view, string(halfBlock))
}

func TestKeys(t *testing.T) {
	s := newSession(t, 1)
	var m tea.Model = New(s, 30)

	tests := []struct {
		key    string
		lo, hi float64
	}{
		{"+", -40, 10},
		{"-", -45, 5},
		{"[", -50, 10},
		{"]", -45, 5},
		{"]", -40, 0},
		{"]", -35, -5},
		{"]", -30, -10},
		{"]", -25, -15},
		{"]", -25, -15}, // span would drop below the minimum
	}
	for _, tt := range tests {
		m, _ = m.Update(key(tt.key))
		lo, hi := s.Scaler().Range()
		assert.InDelta(t, tt.lo, lo, 1e-9, "after %q", tt.key)
		assert.InDelta(t, tt.hi, hi, 1e-9, "after %q", tt.key)
	}

	m, _ = m.Update(key("p"))
	assert.True(t, s.Paused())
	assert.Contains(t, m.View(), "PAUSED")
	m, _ = m.Update(key("p"))
	assert.False(t, s.Paused())

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestNewGridPacksHalfBlocks(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 2, 4))
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	img.SetRGBA(1, 2, red)
	img.SetRGBA(1, 3, blue)

	g := newGrid(img)
	require.Equal(t, 2, g.w)
	require.Equal(t, 2, g.h)
	c := g.at(1, 1)
	assert.Equal(t, red, c.fg)
	assert.Equal(t, blue, c.bg)
	assert.Nil(t, g.at(2, 0))

	out := g.String()
	assert.Equal(t, 2, strings.Count(out, "\n"))
	assert.Contains(t, out, "\x1b[38;2;255;0;0m")
	assert.Contains(t, out, "\x1b[48;2;0;0;255m")
}

func TestMarkerBox(t *testing.T) {
	t.Parallel()

	g := newGrid(image.NewRGBA(image.Rect(0, 0, 8, 16)))
	g.markers([]events.Marker{{
		Rect:  events.Rect{X0: 0.25, X1: 0.75, Y0: 0.25, Y1: 0.75},
		Label: "ab",
	}})

	assert.Equal(t, '┌', g.at(2, 2).ch)
	assert.Equal(t, '┐', g.at(5, 2).ch)
	assert.Equal(t, '└', g.at(2, 6).ch)
	assert.Equal(t, '┘', g.at(5, 6).ch)
	assert.Equal(t, '│', g.at(2, 4).ch)
	assert.Equal(t, '─', g.at(3, 2).ch)
	// label starts right of the box and is clipped at the grid edge
	assert.Equal(t, 'a', g.at(7, 6).ch)
}

func TestMarkerBoxOpenAtScreenEdges(t *testing.T) {
	t.Parallel()

	g := newGrid(image.NewRGBA(image.Rect(0, 0, 8, 16)))
	g.box(events.Rect{X0: 0.25, X1: 0.75, Y0: -0.5, Y1: 1.2})

	assert.Equal(t, '│', g.at(2, 0).ch)
	assert.Equal(t, '│', g.at(5, 7).ch)
	assert.Equal(t, halfBlock, g.at(3, 0).ch)
	assert.Equal(t, halfBlock, g.at(3, 7).ch)
}

func TestSparkline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []float64
		want   string
	}{
		{"ramp", []float64{0, 1, 2, 3, 4, 5, 6, 7}, "▁▂▃▄▅▆▇█"},
		{"flat", []float64{3, 3, 3}, "▁▁▁"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sparkline(tt.values))
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Empty(t, truncate("abc", -1))
}
