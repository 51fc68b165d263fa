package tui

import (
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/MLAB-project/pysdr/internal/detector"
	"github.com/MLAB-project/pysdr/internal/events"
)

// halfBlock shows the top pixel as foreground and the bottom pixel as background
const halfBlock = '▀'

var (
	markerColor = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	labelBg     = color.RGBA{A: 0xFF}
	plotColors  = []color.RGBA{
		{R: 0xFF, G: 0xD7, B: 0x00, A: 0xFF},
		{R: 0x00, G: 0xFF, B: 0x87, A: 0xFF},
		{R: 0xFF, G: 0x5F, B: 0xD7, A: 0xFF},
		{R: 0x5F, G: 0xD7, B: 0xFF, A: 0xFF},
	}
	sparkLevels = []rune("▁▂▃▄▅▆▇█")
)

type cell struct {
	ch     rune
	fg, bg color.RGBA
}

// grid is the waterfall area in terminal cells, each covering two image rows
type grid struct {
	w, h  int
	cells []cell
}

// newGrid packs img into half-block cells. img must be an even number of rows high.
func newGrid(img *image.RGBA) *grid {
	b := img.Bounds()
	g := &grid{w: b.Dx(), h: b.Dy() / 2}
	g.cells = make([]cell, g.w*g.h)
	for y := range g.h {
		for x := range g.w {
			g.cells[y*g.w+x] = cell{
				ch: halfBlock,
				fg: img.RGBAAt(b.Min.X+x, b.Min.Y+2*y),
				bg: img.RGBAAt(b.Min.X+x, b.Min.Y+2*y+1),
			}
		}
	}
	return g
}

func (g *grid) at(x, y int) *cell {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return nil
	}
	return &g.cells[y*g.w+x]
}

// set replaces the glyph of a cell, keeping its lower half as background
func (g *grid) set(x, y int, ch rune, fg color.RGBA) {
	if c := g.at(x, y); c != nil {
		c.ch = ch
		c.fg = fg
	}
}

func (g *grid) text(x, y int, s string, fg, bg color.RGBA) {
	for _, r := range s {
		c := g.at(x, y)
		if c == nil {
			return
		}
		*c = cell{ch: r, fg: fg, bg: bg}
		x++
	}
}

// cellX maps screen x in [0, 1] to a column
func (g *grid) cellX(x float64) int {
	return int(math.Floor(x * float64(g.w)))
}

// cellY maps screen y in [0, 1], 1 at the top, to a row
func (g *grid) cellY(y float64) int {
	return int(math.Floor((1 - y) * float64(g.h)))
}

// box outlines a marker rectangle. Edges outside the grid are left out, so a marker that
// scrolled partly off screen stays open on that side.
func (g *grid) box(r events.Rect) {
	x0, x1 := g.cellX(r.X0), max(g.cellX(r.X1)-1, g.cellX(r.X0))
	top, bottom := g.cellY(r.Y1), max(g.cellY(r.Y0), g.cellY(r.Y1))
	if r.Y0 <= 0 {
		bottom = g.h // open at the bottom
	}
	if r.Y1 >= 1 {
		top = -1 // still growing at the top
	}

	for x := x0 + 1; x < x1; x++ {
		g.set(x, top, '─', markerColor)
		g.set(x, bottom, '─', markerColor)
	}
	for y := top + 1; y < bottom; y++ {
		g.set(x0, y, '│', markerColor)
		g.set(x1, y, '│', markerColor)
	}
	g.set(x0, top, '┌', markerColor)
	g.set(x1, top, '┐', markerColor)
	g.set(x0, bottom, '└', markerColor)
	g.set(x1, bottom, '┘', markerColor)
}

// markers draws every marker with its label anchored right of its oldest corner
func (g *grid) markers(ms []events.Marker) {
	for _, m := range ms {
		g.box(m.Rect)
		if m.Label != "" {
			g.text(g.cellX(m.Rect.X1)+1, min(g.cellY(m.Rect.Y0), g.h-1), m.Label, markerColor, labelBg)
		}
	}
}

// binPlot overlays a [-1, 1] frequency trace. Each cell row shows the sample of the row
// at its centre; rows not yet produced or already overwritten are skipped.
func (g *grid) binPlot(s *detector.Series, textureRow uint64, height int, col color.RGBA) {
	newest := int64(textureRow)
	oldest := newest - int64(min(height, s.Capacity()))
	for y := range g.h {
		sy := 1 - (float64(y)+0.5)/float64(g.h)
		row := int64(math.Floor(float64(newest) + (sy-1)*float64(height)))
		if row < 0 || row < oldest || row >= newest {
			continue
		}
		v := s.At(row)
		if math.IsNaN(v) {
			continue
		}
		g.set(g.cellX((v+1)/2), y, '•', col)
	}
}

// String encodes the grid with 24-bit colour escapes, emitting a colour only when it
// changes along the line
func (g *grid) String() string {
	var b strings.Builder
	b.Grow(g.w * g.h * 8)
	for y := range g.h {
		var fg, bg color.RGBA
		for x := range g.w {
			c := g.cells[y*g.w+x]
			if x == 0 || c.fg != fg {
				writeSGR(&b, 38, c.fg)
				fg = c.fg
			}
			if x == 0 || c.bg != bg {
				writeSGR(&b, 48, c.bg)
				bg = c.bg
			}
			b.WriteRune(c.ch)
		}
		b.WriteString("\x1b[0m\n")
	}
	return b.String()
}

func writeSGR(b *strings.Builder, layer int, c color.RGBA) {
	b.WriteString("\x1b[")
	b.WriteString(strconv.Itoa(layer))
	b.WriteString(";2;")
	b.WriteString(strconv.Itoa(int(c.R)))
	b.WriteByte(';')
	b.WriteString(strconv.Itoa(int(c.G)))
	b.WriteByte(';')
	b.WriteString(strconv.Itoa(int(c.B)))
	b.WriteByte('m')
}

// sparkline scales values into the eight block heights
func sparkline(values []float64) string {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = min(lo, v), max(hi, v)
	}
	out := make([]rune, len(values))
	top := len(sparkLevels) - 1
	for i, v := range values {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			out[i] = ' '
		case hi <= lo:
			out[i] = sparkLevels[0]
		default:
			out[i] = sparkLevels[int(math.Round((v-lo)/(hi-lo)*float64(top)))]
		}
	}
	return string(out)
}
