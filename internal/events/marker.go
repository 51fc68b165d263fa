package events

// Viewport maps rows and bins to screen space. *canvas.Canvas implements it.
type Viewport interface {
	RowToY(row int64) float64
	BinToX(bin int) float64
}

// Rect is a screen-space rectangle; Y grows towards newer rows
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Marker is one visible event overlay
type Marker struct {
	Rect  Rect
	Label string
	Event Event
}

// Visible maps every live event through vp and returns those that overlap the unit
// square, in insertion order. The label anchors at (X1, Y0) like the original overlay.
func (c *Correlator) Visible(vp Viewport) []Marker {
	live := c.Snapshot()
	out := make([]Marker, 0, len(live))
	for _, ev := range live {
		r := Rect{
			X0: vp.BinToX(ev.BinLo),
			X1: vp.BinToX(ev.BinHi),
			Y0: vp.RowToY(ev.StartRow),
			Y1: vp.RowToY(ev.EndRow),
		}
		if r.Y1 < 0 || r.Y0 > 1 || r.X1 < 0 || r.X0 > 1 {
			continue
		}
		out = append(out, Marker{Rect: r, Label: ev.Description, Event: ev})
	}
	return out
}
