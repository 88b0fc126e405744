// Package overlay owns the score region rectangle drawn on top of the
// displayed frame and the transform handles attached to it.
package overlay

import (
	"errors"
	"fmt"
	"math"

	"github.com/user/scoresplit/pkg/coords"
	"github.com/user/scoresplit/pkg/ports"
)

const (
	// MinScale is the smallest scale factor a resize gesture may apply.
	MinScale = 0.001

	// MinDimension is the smallest width or height of a region in canvas pixels.
	MinDimension = 1.0

	// RotaterOffset is the distance of the rotate grip above the region's top edge.
	RotaterOffset = 50.0
)

// ErrInvalidRegion is returned when a region has a non-positive width or height.
var ErrInvalidRegion = errors.New("overlay: region width and height must be positive")

// Region is the score rectangle in canvas coordinates.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether the region has a positive, finite size.
func (r Region) Valid() bool {
	return r.Width > 0 && r.Height > 0 &&
		!math.IsInf(r.Width, 0) && !math.IsInf(r.Height, 0)
}

// Payload converts the region to its backend representation.
func (r Region) Payload() *ports.RegionPayload {
	return &ports.RegionPayload{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// String implements fmt.Stringer.
func (r Region) String() string {
	return fmt.Sprintf("(%.0f, %.0f) %.0fx%.0f", r.X, r.Y, r.Width, r.Height)
}

// Anchor identifies one of the eight resize grips.
type Anchor int

const (
	AnchorTopLeft Anchor = iota
	AnchorTopCenter
	AnchorTopRight
	AnchorMiddleRight
	AnchorBottomRight
	AnchorBottomCenter
	AnchorBottomLeft
	AnchorMiddleLeft
)

// Handles is the transform-handle set attached to a region.
type Handles struct {
	// Target is the region the handles were last synced to.
	Target  Region          `json:"target"`
	Anchors [8]coords.Point `json:"anchors"`
	Rotater coords.Point    `json:"rotater"`
}

// Anchor returns the position of grip a.
func (h Handles) Anchor(a Anchor) coords.Point {
	return h.Anchors[a]
}

func handlesFor(r Region) Handles {
	left, top := r.X, r.Y
	right, bottom := r.X+r.Width, r.Y+r.Height
	cx, cy := r.X+r.Width/2, r.Y+r.Height/2

	return Handles{
		Target: r,
		Anchors: [8]coords.Point{
			AnchorTopLeft:      {X: left, Y: top},
			AnchorTopCenter:    {X: cx, Y: top},
			AnchorTopRight:     {X: right, Y: top},
			AnchorMiddleRight:  {X: right, Y: cy},
			AnchorBottomRight:  {X: right, Y: bottom},
			AnchorBottomCenter: {X: cx, Y: bottom},
			AnchorBottomLeft:   {X: left, Y: bottom},
			AnchorMiddleLeft:   {X: left, Y: cy},
		},
		Rotater: coords.Point{X: cx, Y: top - RotaterOffset},
	}
}

// Controller maintains the score region and applies drag and resize gestures to it.
// It is not safe for concurrent use; the synchronizer owns it.
type Controller struct {
	mapper  coords.Mapper
	region  Region
	handles Handles
	logger  ports.Logger
}

// NewController creates a controller holding initial.
func NewController(mapper coords.Mapper, initial Region, logger ports.Logger) (*Controller, error) {
	if !initial.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRegion, initial)
	}
	if mapper == nil {
		mapper = coords.Identity{}
	}
	c := &Controller{
		mapper: mapper,
		region: initial,
		logger: logger.WithComponent("overlay"),
	}
	c.handles = handlesFor(initial)
	return c, nil
}

// Region returns the current score region.
func (c *Controller) Region() Region {
	return c.region
}

// SetMapper replaces the display-to-canvas mapper, e.g. after the display was resized.
func (c *Controller) SetMapper(m coords.Mapper) {
	if m == nil {
		m = coords.Identity{}
	}
	c.mapper = m
}

// DragEnd commits the position reported at the end of a drag gesture.
// The region keeps its size.
func (c *Controller) DragEnd(reported coords.Point) Region {
	p := c.mapper.MapPoint(reported)
	c.region.X = p.X
	c.region.Y = p.Y
	c.logger.Debug("Region moved to %s", c.region)
	return c.region
}

// TransformEnd commits the position and scale reported at the end of a
// resize gesture. The new size is the current size multiplied by the scale
// factors, which are clamped to MinScale so the region never degenerates.
// Scales compound across gestures: each one is relative to the last commit.
func (c *Controller) TransformEnd(reported coords.Point, scaleX, scaleY float64) Region {
	p := c.mapper.MapPoint(reported)
	c.region = Region{
		X:      p.X,
		Y:      p.Y,
		Width:  clampDimension(c.region.Width * clampScale(scaleX)),
		Height: clampDimension(c.region.Height * clampScale(scaleY)),
	}
	c.logger.Debug("Region resized to %s", c.region)
	return c.region
}

// Handles re-syncs the transform handles to the current region and returns them.
// Call it on every redraw.
func (c *Controller) Handles() Handles {
	if c.handles.Target != c.region {
		c.handles = handlesFor(c.region)
	}
	return c.handles
}

// clampScale treats a non-finite factor as "no change".
func clampScale(s float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 1
	}
	if s < MinScale {
		return MinScale
	}
	return s
}

func clampDimension(v float64) float64 {
	if v < MinDimension {
		return MinDimension
	}
	return v
}
