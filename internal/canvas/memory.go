package canvas

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/MLAB-project/pysdr/internal/errors"
)

// MemoryBackend keeps tiles in host memory. It backs the terminal view, the PNG snapshot
// endpoint and tests.
type MemoryBackend struct {
	mu        sync.RWMutex
	cfg       Config
	tiles     [][]uint32
	lastQuads []Quad
	draws     uint64
}

// NewMemoryBackend creates an empty backend; the canvas allocates it
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Allocate(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tiles != nil {
		return errors.Newf("memory backend already allocated").
			Component("canvas").
			Category(errors.CategoryState).
			Build()
	}
	m.cfg = cfg
	m.tiles = make([][]uint32, cfg.TilesX*cfg.TilesY)
	for i := range m.tiles {
		m.tiles[i] = make([]uint32, cfg.UnitWidth*cfg.UnitHeight)
	}
	return nil
}

func (m *MemoryBackend) Upload(tile, y int, pixels []uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tile < 0 || tile >= len(m.tiles) || y < 0 || y >= m.cfg.UnitHeight {
		return errors.Newf("upload to tile %d row %d out of bounds", tile, y).
			Component("canvas").
			Category(errors.CategoryValidation).
			Build()
	}
	copy(m.tiles[tile][y*m.cfg.UnitWidth:(y+1)*m.cfg.UnitWidth], pixels)
	return nil
}

func (m *MemoryBackend) Draw(quads []Quad) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuads = append(m.lastQuads[:0], quads...)
	m.draws++
	return nil
}

// Draws is the number of Draw calls so far
func (m *MemoryBackend) Draws() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.draws
}

// LastQuads returns a copy of the quads from the most recent Draw
func (m *MemoryBackend) LastQuads() []Quad {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Quad(nil), m.lastQuads...)
}

// ReadRow reads canvas row y back across every tile column
func (m *MemoryBackend) ReadRow(y int) []uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w := m.cfg.UnitWidth
	out := make([]uint32, w*m.cfg.TilesX)
	base := (y / m.cfg.UnitHeight) * m.cfg.TilesX
	offset := (y % m.cfg.UnitHeight) * w
	for x := range m.cfg.TilesX {
		copy(out[x*w:(x+1)*w], m.tiles[base+x][offset:offset+w])
	}
	return out
}

// Render rasterises quads into a width × height image by nearest-neighbour sampling.
// Image row 0 is the top of the screen (y = 1).
func (m *MemoryBackend) Render(quads []Quad, width, height int) *image.RGBA {
	m.mu.RLock()
	defer m.mu.RUnlock()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for py := range height {
		sy := 1 - (float64(py)+0.5)/float64(height)
		for px := range width {
			sx := (float64(px) + 0.5) / float64(width)
			q, ok := findQuad(quads, sx, sy)
			if !ok {
				continue
			}
			u := (sx - q.X0) / (q.X1 - q.X0)
			v := q.V0 + (sy-q.Y0)/(q.Y1-q.Y0)*(q.V1-q.V0)
			tx := clampIndex(int(math.Floor(u*float64(m.cfg.UnitWidth))), m.cfg.UnitWidth)
			ty := clampIndex(int(math.Floor(v*float64(m.cfg.UnitHeight))), m.cfg.UnitHeight)
			px32 := m.tiles[q.Tile][ty*m.cfg.UnitWidth+tx]
			img.SetRGBA(px, py, color.RGBA{
				R: uint8(px32 >> 24),
				G: uint8(px32 >> 16),
				B: uint8(px32 >> 8),
				A: uint8(px32),
			})
		}
	}
	return img
}

// WritePNG renders quads and encodes them as PNG
func (m *MemoryBackend) WritePNG(w io.Writer, quads []Quad, width, height int) error {
	if err := png.Encode(w, m.Render(quads, width, height)); err != nil {
		return errors.New(err).
			Component("canvas").
			Category(errors.CategoryRender).
			Context("operation", "encode_png").
			Build()
	}
	return nil
}

func findQuad(quads []Quad, x, y float64) (Quad, bool) {
	for _, q := range quads {
		if x >= q.X0 && x < q.X1 && y >= q.Y0 && y < q.Y1 {
			return q, true
		}
	}
	return Quad{}, false
}

func clampIndex(i, n int) int {
	return max(0, min(i, n-1))
}
