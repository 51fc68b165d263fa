// Package tui is the terminal render context of the live waterfall.
//
// The canvas is composed at twice the terminal height and packed into half-block cells
// with 24-bit colour. Event markers and frequency plots are drawn over it; value plots and
// the magnitude histogram get their own strips below.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MLAB-project/pysdr/internal/colormap"
	"github.com/MLAB-project/pysdr/internal/detector"
	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/runtime"
)

const (
	// magStep is the dB shift of one range key press
	magStep = 5.0
	// minSpan is the narrowest magnitude range
	minSpan = 5.0
	// chromeLines are the header, histogram and footer
	chromeLines    = 3
	maxValueStrips = 2
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#88C0D0"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#D8DEE9"))
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2E3440")).Background(lipgloss.Color("#EBCB8B"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2E3440")).Background(lipgloss.Color("#BF616A"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
	rangeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A3BE8C"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#81A1C1"))
)

const helpText = "q quit  +/- shift range  [/] widen/narrow  p pause"

type tickMsg time.Time

// Model is the bubbletea model driving one session's display
type Model struct {
	s        *runtime.Session
	interval time.Duration

	width, height int
	ended         bool
	err           error
}

// New creates a model redrawing fps times per second
func New(s *runtime.Session, fps int) Model {
	if fps <= 0 {
		fps = 30
	}
	return Model{s: s, interval: time.Second / time.Duration(fps), width: 80, height: 24}
}

// Err is the render error that ended the program, if any
func (m Model) Err() error { return m.err }

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd { return m.tick() }

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tickMsg:
		if _, err := m.s.Tick(); err != nil {
			m.err = err
			return m, tea.Quit
		}
		select {
		case <-m.s.Done():
			m.ended = true
		default:
		}
		return m, m.tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sc := m.s.Scaler()
	lo, hi := sc.Range()
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "+", "=":
		sc.SetRange(lo+magStep, hi+magStep)
	case "-", "_":
		sc.SetRange(lo-magStep, hi-magStep)
	case "[":
		sc.SetRange(lo-magStep, hi+magStep)
	case "]":
		if hi-lo-2*magStep >= minSpan {
			sc.SetRange(lo+magStep, hi-magStep)
		}
	case "p", " ":
		m.s.SetPaused(!m.s.Paused())
	}
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	strips := m.valueSeries()
	rows := max(m.height-chromeLines-len(strips), 1)

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteByte('\n')
	b.WriteString(m.waterfall(m.width, rows))
	for _, p := range strips {
		b.WriteString(m.strip(p))
		b.WriteByte('\n')
	}
	b.WriteString(m.histogram())
	b.WriteByte('\n')
	b.WriteString(dimStyle.Render(truncate(helpText, m.width)))
	return b.String()
}

func (m Model) header() string {
	stats := m.s.QueueStats()
	lo, hi := m.s.Scaler().Range()
	info := fmt.Sprintf(" %s | %.2f ms/row | queue %d dropped %d | events %d | mag [%.0f, %.0f] dB ",
		m.s.Source().Name(), m.s.RowDuration()*1000, stats.Depth, stats.Dropped,
		m.s.Correlator().Len(), lo, hi)
	line := titleStyle.Render("pysdr") + headerStyle.Render(info)
	switch {
	case m.err != nil:
		line += errStyle.Render(" " + m.err.Error() + " ")
	case m.s.Paused():
		line += warnStyle.Render(" PAUSED ")
	case m.ended:
		line += warnStyle.Render(" SOURCE ENDED ")
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(line)
}

func (m Model) waterfall(width, rows int) string {
	g := newGrid(m.s.Render(width, rows*2))
	g.markers(m.s.Markers())

	textureRow := m.s.TextureRow()
	height := m.s.Canvas().Height()
	i := 0
	for _, p := range m.s.Plots() {
		if p.Series.Kind() != detector.SeriesBin {
			continue
		}
		g.binPlot(p.Series, textureRow, height, plotColors[i%len(plotColors)])
		i++
	}
	return g.String()
}

// valueSeries are the free-valued plots shown as strips, at most maxValueStrips
func (m Model) valueSeries() []detector.Plot {
	var out []detector.Plot
	for _, p := range m.s.Plots() {
		if p.Series.Kind() == detector.SeriesValue && len(out) < maxValueStrips {
			out = append(out, p)
		}
	}
	return out
}

func (m Model) strip(p detector.Plot) string {
	label := truncate(p.Detector+"."+p.Series.Name()+" ", m.width/3)
	n := max(m.width-len([]rune(label)), 1)
	values := p.Series.Window(int64(m.s.TextureRow())-1, n, nil)
	return labelStyle.Render(label) + sparkline(values)
}

// histogram shows the newest row's magnitude distribution; the columns inside the
// current colour range are highlighted
func (m Model) histogram() string {
	frame := m.s.LastFrame()
	if frame == nil || m.width <= 0 {
		return dimStyle.Render(truncate("no data", m.width))
	}
	h := colormap.Histogram(frame)
	peak := 0
	for _, c := range h {
		peak = max(peak, c)
	}

	lo, hi := m.s.Scaler().Range()
	var before, inside, after strings.Builder
	top := len(sparkLevels) - 1
	for x := range m.width {
		i := x * colormap.HistogramBins / m.width
		level := ' '
		if h[i] > 0 && peak > 0 {
			level = sparkLevels[h[i]*top/peak]
		}
		switch edge := colormap.BinEdge(i); {
		case edge < lo:
			before.WriteRune(level)
		case edge < hi:
			inside.WriteRune(level)
		default:
			after.WriteRune(level)
		}
	}
	return dimStyle.Render(before.String()) + rangeStyle.Render(inside.String()) + dimStyle.Render(after.String())
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:max(width, 0)])
}

// Render returns a render context running the terminal UI in the alternate screen until
// the user quits or ctx ends
func Render(fps int, opts ...tea.ProgramOption) runtime.RenderFunc {
	return func(ctx context.Context, s *runtime.Session) error {
		all := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
		final, err := tea.NewProgram(New(s, fps), all...).Run()
		if err != nil {
			if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
				return nil
			}
			return errors.New(err).
				Component("tui").
				Category(errors.CategoryRender).
				Context("operation", "run_program").
				Build()
		}
		if fm, ok := final.(Model); ok && fm.err != nil {
			return fm.err
		}
		return nil
	}
}
