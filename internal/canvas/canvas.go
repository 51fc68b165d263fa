// Package canvas presents an unbounded scrolling waterfall on a fixed grid of tiles.
//
// The canvas is tilesX × tilesY tiles of unitWidth × unitHeight pixels. Row r of the stream
// is stored at canvas row r mod Height and nothing is ever moved: scrolling is done at draw
// time by emitting at most two quads per tile, split where the write edge cuts the tile.
//
// Screen space is [0,1]²: x grows with frequency bin, y grows upward with the newest row
// touching y = 1.
package canvas

import (
	"sync"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/logger"
	"github.com/MLAB-project/pysdr/internal/observability/metrics"
)

// Quad is one textured rectangle: tile texture v range [V0, V1] drawn at screen y [Y0, Y1].
// Texture u always spans the full tile width.
type Quad struct {
	Tile   int
	X0, X1 float64
	Y0, Y1 float64
	V0, V1 float64
}

// Backend stores tile pixels and draws quads. Implementations own the tile memory; the
// canvas never asks for a resize or reallocation after construction.
type Backend interface {
	// Allocate is called once with the grid geometry
	Allocate(cfg Config) error
	// Upload writes one row of packed RGBA pixels into tile at row offset y
	Upload(tile, y int, pixels []uint32) error
	// Draw presents the quads
	Draw(quads []Quad) error
}

// Config describes the tile grid
type Config struct {
	UnitWidth  int
	UnitHeight int
	TilesX     int
	TilesY     int
}

// ConfigFor sizes a grid for bins columns and at least rows retained rows
func ConfigFor(bins, rows, unitWidth, unitHeight int) Config {
	return Config{
		UnitWidth:  unitWidth,
		UnitHeight: unitHeight,
		TilesX:     bins / unitWidth,
		TilesY:     max((rows+unitHeight-1)/unitHeight, 1),
	}
}

// Canvas is the tile ring. Methods are safe for concurrent use; in practice the render loop
// inserts and draws while the HTTP snapshot handler reads.
type Canvas struct {
	cfg     Config
	backend Backend

	mu         sync.Mutex
	textureRow uint64 // rows accounted for; the newest row is textureRow-1
	quads      []Quad
	onInsert   []func(textureRow uint64)

	log     logger.Logger
	metrics *metrics.RenderMetrics
}

// Option configures a Canvas
type Option func(*Canvas)

// WithMetrics reports inserted rows and the texture row
func WithMetrics(m *metrics.RenderMetrics) Option {
	return func(c *Canvas) { c.metrics = m }
}

// New validates cfg and allocates the tiles on backend
func New(cfg Config, backend Backend, opts ...Option) (*Canvas, error) {
	if cfg.UnitWidth <= 0 || cfg.UnitHeight <= 0 || cfg.TilesX <= 0 || cfg.TilesY <= 0 {
		return nil, errors.Newf("invalid canvas geometry %dx%d tiles of %dx%d",
			cfg.TilesX, cfg.TilesY, cfg.UnitWidth, cfg.UnitHeight).
			Component("canvas").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := backend.Allocate(cfg); err != nil {
		return nil, errors.New(err).
			Component("canvas").
			Category(errors.CategoryRender).
			Context("operation", "allocate_tiles").
			Build()
	}

	c := &Canvas{
		cfg:     cfg,
		backend: backend,
		quads:   make([]Quad, 0, cfg.TilesX*(cfg.TilesY+1)),
		log:     GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log.Debug("canvas allocated",
		logger.Int("width", c.Width()),
		logger.Int("height", c.Height()),
		logger.Int("tiles", cfg.TilesX*cfg.TilesY))
	return c, nil
}

// Width is the canvas width in pixels
func (c *Canvas) Width() int { return c.cfg.TilesX * c.cfg.UnitWidth }

// Height is the number of retained rows
func (c *Canvas) Height() int { return c.cfg.TilesY * c.cfg.UnitHeight }

// Config returns the grid geometry
func (c *Canvas) Config() Config { return c.cfg }

// OnInsert registers fn to run after every insert with the new texture row
func (c *Canvas) OnInsert(fn func(textureRow uint64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onInsert = append(c.onInsert, fn)
}

// TextureRow is one past the newest inserted row index
func (c *Canvas) TextureRow() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.textureRow
}

// Edge is the canvas row the next insert lands on
func (c *Canvas) Edge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.textureRow % uint64(c.Height()))
}

// InsertAt writes pixels into canvas row y of every tile column. It touches exactly one
// tile row and does not move the write edge.
func (c *Canvas) InsertAt(y int, pixels []uint32) error {
	if y < 0 || y >= c.Height() {
		return errors.Newf("canvas row %d out of bounds [0, %d)", y, c.Height()).
			Component("canvas").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(pixels) < c.Width() {
		return errors.Newf("row has %d pixels, canvas is %d wide", len(pixels), c.Width()).
			Component("canvas").
			Category(errors.CategoryValidation).
			Build()
	}

	base := (y / c.cfg.UnitHeight) * c.cfg.TilesX
	offset := y % c.cfg.UnitHeight
	w := c.cfg.UnitWidth
	for x := range c.cfg.TilesX {
		if err := c.backend.Upload(base+x, offset, pixels[x*w:(x+1)*w]); err != nil {
			return errors.New(err).
				Component("canvas").
				Category(errors.CategoryRender).
				Context("operation", "upload_row").
				Context("tile", base+x).
				Build()
		}
	}
	return nil
}

// Insert writes the row with global index row at the write edge and advances the edge.
// Rows must arrive in increasing order. A gap (rows dropped upstream) advances the edge past
// the missing rows so row indices and canvas positions stay aligned; the skipped canvas rows
// keep their previous content.
func (c *Canvas) Insert(row uint64, pixels []uint32) error {
	c.mu.Lock()
	if row < c.textureRow {
		c.mu.Unlock()
		return errors.Newf("row %d inserted after row %d", row, c.textureRow-1).
			Component("canvas").
			Category(errors.CategoryState).
			Build()
	}
	if gap := row - c.textureRow; gap > 0 {
		c.log.Debug("canvas skipping dropped rows", logger.Uint64("from", c.textureRow), logger.Uint64("count", gap))
	}
	edge := int(row % uint64(c.Height()))
	if err := c.InsertAt(edge, pixels); err != nil {
		c.mu.Unlock()
		return err
	}
	c.textureRow = row + 1
	textureRow := c.textureRow
	hooks := c.onInsert
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RowsInserted.Inc()
		c.metrics.TextureRow.Set(float64(textureRow))
	}
	for _, fn := range hooks {
		fn(textureRow)
	}
	return nil
}

// ScrollQuads lays out the whole canvas so the row just before edge is at the top and the
// row at edge is at the bottom. The tile holding the edge is split into two quads.
func (c *Canvas) ScrollQuads(edge int, dst []Quad) []Quad {
	tilesY := c.cfg.TilesY
	unitH := c.cfg.UnitHeight
	rowShift := float64(edge%unitH) / float64(c.Height())
	edgeTile := edge / unitH

	for row := range tilesY {
		y := ((row-edgeTile)%tilesY + tilesY) % tilesY
		if y == 0 {
			// newest part of the edge tile on top, oldest part at the bottom
			vSplit := rowShift * float64(tilesY)
			dst = c.appendTileRow(dst, row, 1-rowShift, 1, 0, vSplit)
			dst = c.appendTileRow(dst, row, 0, 1/float64(tilesY)-rowShift, vSplit, 1)
			continue
		}
		ya := float64(y)/float64(tilesY) - rowShift
		yb := float64(y+1)/float64(tilesY) - rowShift
		dst = c.appendTileRow(dst, row, ya, yb, 0, 1)
	}
	return dst
}

// appendTileRow emits one quad per tile column; zero-height quads are skipped
func (c *Canvas) appendTileRow(dst []Quad, row int, ya, yb, va, vb float64) []Quad {
	if yb <= ya {
		return dst
	}
	tilesX := float64(c.cfg.TilesX)
	for x := range c.cfg.TilesX {
		dst = append(dst, Quad{
			Tile: row*c.cfg.TilesX + x,
			X0:   float64(x) / tilesX,
			X1:   float64(x+1) / tilesX,
			Y0:   ya,
			Y1:   yb,
			V0:   va,
			V1:   vb,
		})
	}
	return dst
}

// DrawScroll draws the canvas at the current edge
func (c *Canvas) DrawScroll() error {
	c.mu.Lock()
	edge := int(c.textureRow % uint64(c.Height()))
	c.quads = c.ScrollQuads(edge, c.quads[:0])
	quads := c.quads
	err := c.backend.Draw(quads)
	c.mu.Unlock()

	if err != nil {
		return errors.New(err).
			Component("canvas").
			Category(errors.CategoryRender).
			Context("operation", "draw_scroll").
			Build()
	}
	return nil
}

// Quads returns the current scroll layout
func (c *Canvas) Quads() []Quad {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ScrollQuads(int(c.textureRow%uint64(c.Height())), nil)
}

// RowToY maps a global row index to screen y using the current texture row. The newest row
// spans [1 - 1/Height, 1]; rows older than Height map below zero.
func (c *Canvas) RowToY(row int64) float64 {
	return RowToY(row, int64(c.TextureRow()), c.Height())
}

// BinToX maps a bin index to screen x
func (c *Canvas) BinToX(bin int) float64 {
	return BinToX(bin, c.Width())
}

// RowToY is the canvas coordinate mapping shared with overlays
func RowToY(row, textureRow int64, height int) float64 {
	return float64(row-textureRow)/float64(height) + 1
}

// BinToX maps a bin index to screen x for a canvas bins wide
func BinToX(bin, bins int) float64 {
	return float64(bin) / float64(bins)
}
