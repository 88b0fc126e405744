// Package coords maps pointer positions reported in display space to the
// frame space in which the score region is stored.
package coords

// Point is a position or a delta in a 2D coordinate space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Mapper converts display-space coordinates into frame-space coordinates.
type Mapper interface {
	// MapPoint maps an absolute display position.
	MapPoint(p Point) Point

	// MapDelta maps a pointer movement.
	MapDelta(d Point) Point
}

// Identity is the mapper used when the display and the frame share the
// same fixed canvas dimensions.
type Identity struct{}

// MapPoint returns p unchanged.
func (Identity) MapPoint(p Point) Point { return p }

// MapDelta returns d unchanged.
func (Identity) MapDelta(d Point) Point { return d }

// Scaled maps a display that is drawn at a different size than the canvas.
type Scaled struct {
	sx, sy float64
}

// NewScaled creates a mapper from a display of displayW x displayH pixels to
// a canvas of canvasW x canvasH pixels. Any non-positive dimension yields a
// mapper that behaves like Identity.
func NewScaled(displayW, displayH, canvasW, canvasH int) Scaled {
	if displayW <= 0 || displayH <= 0 || canvasW <= 0 || canvasH <= 0 {
		return Scaled{sx: 1, sy: 1}
	}
	return Scaled{
		sx: float64(canvasW) / float64(displayW),
		sy: float64(canvasH) / float64(displayH),
	}
}

// MapPoint scales p into canvas space.
func (s Scaled) MapPoint(p Point) Point {
	return Point{X: p.X * s.sx, Y: p.Y * s.sy}
}

// MapDelta scales d into canvas space. Deltas and points scale alike
// because both spaces share the same origin.
func (s Scaled) MapDelta(d Point) Point {
	return s.MapPoint(d)
}

var (
	_ Mapper = Identity{}
	_ Mapper = Scaled{}
)
