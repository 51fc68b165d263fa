package canvas

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rowPixels fills a row whose red channel encodes the row index and green the column
func rowPixels(row uint64, width int) []uint32 {
	px := make([]uint32, width)
	for i := range px {
		px[i] = uint32(row%251+1)<<24 | uint32(i%256)<<16 | 0xff
	}
	return px
}

func newTestCanvas(t *testing.T, cfg Config) (*Canvas, *MemoryBackend) {
	t.Helper()
	mem := NewMemoryBackend()
	c, err := New(cfg, mem)
	require.NoError(t, err)
	return c, mem
}

func TestInsertReadbackAcrossWrap(t *testing.T) {
	t.Parallel()

	cfg := Config{UnitWidth: 4, UnitHeight: 4, TilesX: 2, TilesY: 3}
	c, mem := newTestCanvas(t, cfg)
	require.Equal(t, 8, c.Width())
	require.Equal(t, 12, c.Height())

	const total = 12 + 7
	for r := range uint64(total) {
		require.NoError(t, c.Insert(r, rowPixels(r, c.Width())))
	}
	assert.Equal(t, uint64(total), c.TextureRow())
	assert.Equal(t, total%12, c.Edge())

	// every canvas row holds the newest stream row that maps onto it
	for y := range c.Height() {
		newest := uint64(y)
		for newest+12 < total {
			newest += 12
		}
		assert.Equal(t, rowPixels(newest, c.Width()), mem.ReadRow(y), "canvas row %d", y)
	}
}

// uploadRecorder records Upload calls
type uploadRecorder struct {
	MemoryBackend
	calls []struct{ tile, y int }
}

func (u *uploadRecorder) Upload(tile, y int, pixels []uint32) error {
	u.calls = append(u.calls, struct{ tile, y int }{tile, y})
	return u.MemoryBackend.Upload(tile, y, pixels)
}

func TestInsertTouchesOneTileRow(t *testing.T) {
	t.Parallel()

	cfg := Config{UnitWidth: 2, UnitHeight: 3, TilesX: 4, TilesY: 2}
	rec := &uploadRecorder{}
	c, err := New(cfg, rec)
	require.NoError(t, err)

	for r := range uint64(15) {
		rec.calls = rec.calls[:0]
		require.NoError(t, c.Insert(r, rowPixels(r, c.Width())))
		require.Len(t, rec.calls, cfg.TilesX)

		edge := int(r) % c.Height()
		for x, call := range rec.calls {
			assert.Equal(t, (edge/cfg.UnitHeight)*cfg.TilesX+x, call.tile)
			assert.Equal(t, edge%cfg.UnitHeight, call.y)
		}
	}
}

func TestScrollShowsNewestOnTop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		inserts uint64
	}{
		{"edge inside tile", Config{UnitWidth: 4, UnitHeight: 4, TilesX: 2, TilesY: 3}, 19},
		{"edge on tile boundary", Config{UnitWidth: 4, UnitHeight: 4, TilesX: 2, TilesY: 3}, 20},
		{"exactly one lap", Config{UnitWidth: 4, UnitHeight: 4, TilesX: 2, TilesY: 3}, 12},
		{"single tile row", Config{UnitWidth: 8, UnitHeight: 8, TilesX: 1, TilesY: 1}, 13},
		{"tall grid", Config{UnitWidth: 2, UnitHeight: 2, TilesX: 1, TilesY: 5}, 33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, mem := newTestCanvas(t, tt.cfg)
			for r := range tt.inserts {
				require.NoError(t, c.Insert(r, rowPixels(r, c.Width())))
			}
			require.NoError(t, c.DrawScroll())
			quads := mem.LastQuads()
			// at most two quads per tile
			assert.LessOrEqual(t, len(quads), tt.cfg.TilesX*(tt.cfg.TilesY+1))

			img := mem.Render(quads, c.Width(), c.Height())
			for py := range c.Height() {
				want := tt.inserts - 1 - uint64(py)
				wantPx := rowPixels(want, c.Width())
				for px := range c.Width() {
					got := img.RGBAAt(px, py)
					assert.Equal(t, uint8(wantPx[px]>>24), got.R, "screen row %d col %d", py, px)
					assert.Equal(t, uint8(wantPx[px]>>16), got.G, "screen row %d col %d", py, px)
				}
			}
		})
	}
}

func TestInsertOrdering(t *testing.T) {
	t.Parallel()

	c, mem := newTestCanvas(t, Config{UnitWidth: 2, UnitHeight: 2, TilesX: 1, TilesY: 2})
	require.NoError(t, c.Insert(0, rowPixels(0, 2)))

	// rows 1 and 2 were dropped upstream
	require.NoError(t, c.Insert(3, rowPixels(3, 2)))
	assert.Equal(t, uint64(4), c.TextureRow())
	assert.Equal(t, rowPixels(3, 2), mem.ReadRow(3))
	assert.Equal(t, make([]uint32, 2), mem.ReadRow(1))

	require.Error(t, c.Insert(2, rowPixels(2, 2)))
	assert.Equal(t, uint64(4), c.TextureRow())
}

func TestOnInsertHook(t *testing.T) {
	t.Parallel()

	c, _ := newTestCanvas(t, Config{UnitWidth: 2, UnitHeight: 2, TilesX: 1, TilesY: 1})
	var seen []uint64
	c.OnInsert(func(tr uint64) { seen = append(seen, tr) })

	for r := range uint64(3) {
		require.NoError(t, c.Insert(r, rowPixels(r, 2)))
	}
	assert.Equal(t, []uint64{1, 2, 3}, seen)
}

func TestValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{UnitWidth: 0, UnitHeight: 4, TilesX: 1, TilesY: 1}, NewMemoryBackend())
	require.Error(t, err)

	c, _ := newTestCanvas(t, Config{UnitWidth: 4, UnitHeight: 4, TilesX: 2, TilesY: 1})
	require.Error(t, c.Insert(0, make([]uint32, 7)))
	require.Error(t, c.InsertAt(4, make([]uint32, 8)))
	require.Error(t, c.InsertAt(-1, make([]uint32, 8)))
	assert.Equal(t, uint64(0), c.TextureRow())
}

func TestCoordinateMapping(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, RowToY(100, 100, 50), 1e-12)
	assert.InDelta(t, 0.0, RowToY(50, 100, 50), 1e-12)
	assert.InDelta(t, 0.5, RowToY(75, 100, 50), 1e-12)
	assert.Less(t, RowToY(49, 100, 50), 0.0)

	assert.InDelta(t, 0.0, BinToX(0, 4096), 0)
	assert.InDelta(t, 0.5, BinToX(2048, 4096), 0)
}

func TestConfigFor(t *testing.T) {
	t.Parallel()

	cfg := ConfigFor(4096, 1500, 1024, 1024)
	assert.Equal(t, Config{UnitWidth: 1024, UnitHeight: 1024, TilesX: 4, TilesY: 2}, cfg)
	assert.Equal(t, 1, ConfigFor(1024, 0, 1024, 1024).TilesY)
}

func TestWritePNG(t *testing.T) {
	t.Parallel()

	c, mem := newTestCanvas(t, Config{UnitWidth: 4, UnitHeight: 4, TilesX: 1, TilesY: 1})
	for r := range uint64(6) {
		require.NoError(t, c.Insert(r, rowPixels(r, 4)))
	}

	var buf bytes.Buffer
	require.NoError(t, mem.WritePNG(&buf, c.Quads(), 8, 8))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(6)*0x101, r)
}
