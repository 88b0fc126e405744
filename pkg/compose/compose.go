// Package compose draws the score region and its transform handles over a
// video frame on a fixed-size canvas.
package compose

import (
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	"github.com/user/scoresplit/pkg/overlay"
	"github.com/user/scoresplit/pkg/ports"
)

// Options configures the composed canvas.
type Options struct {
	Width       int
	Height      int
	Background  color.Color
	Stroke      color.Color
	StrokeWidth float64
	HandleColor color.Color
	HandleSize  float64
	Quality     int // JPEG quality, 1-100
}

// DefaultOptions returns a 1280x720 canvas with a blue stroke of width 5.
func DefaultOptions() Options {
	return Options{
		Width:       1280,
		Height:      720,
		Background:  color.Black,
		Stroke:      color.RGBA{R: 0, G: 0, B: 255, A: 255},
		StrokeWidth: 5,
		HandleColor: color.White,
		HandleSize:  10,
		Quality:     80,
	}
}

// Compositor renders frames with the region overlay.
type Compositor struct {
	renderer ports.Renderer
	opts     Options
}

// New creates a Compositor. Zero-valued options fall back to DefaultOptions.
func New(renderer ports.Renderer, opts Options) *Compositor {
	def := DefaultOptions()
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = def.Width, def.Height
	}
	if opts.Background == nil {
		opts.Background = def.Background
	}
	if opts.Stroke == nil {
		opts.Stroke = def.Stroke
	}
	if opts.StrokeWidth <= 0 {
		opts.StrokeWidth = def.StrokeWidth
	}
	if opts.HandleColor == nil {
		opts.HandleColor = def.HandleColor
	}
	if opts.HandleSize <= 0 {
		opts.HandleSize = def.HandleSize
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	return &Compositor{renderer: renderer, opts: opts}
}

// Size returns the canvas size.
func (c *Compositor) Size() (width, height int) {
	return c.opts.Width, c.opts.Height
}

// Compose draws frame scaled to the canvas, then the region outline and
// handles. A nil frame leaves the background visible.
func (c *Compositor) Compose(frame image.Image, region overlay.Region, handles overlay.Handles) image.Image {
	canvas := c.renderer.CreateCanvas(c.opts.Width, c.opts.Height, c.opts.Background)

	if frame != nil {
		b := frame.Bounds()
		if b.Dx() != c.opts.Width || b.Dy() != c.opts.Height {
			frame = c.renderer.ResizeImage(frame, c.opts.Width, c.opts.Height)
		}
		canvas.DrawImage(frame, 0, 0)
	}

	canvas.DrawRectStroke(region.X, region.Y, region.Width, region.Height, c.opts.Stroke, c.opts.StrokeWidth)

	// Rotate grip hangs above the top-center anchor.
	top := handles.Anchor(overlay.AnchorTopCenter)
	canvas.DrawLine(top.X, top.Y, handles.Rotater.X, handles.Rotater.Y, c.opts.HandleColor, 1)
	c.drawGrip(canvas, handles.Rotater.X, handles.Rotater.Y)

	for _, p := range handles.Anchors {
		c.drawGrip(canvas, p.X, p.Y)
	}

	return canvas.ToImage()
}

func (c *Compositor) drawGrip(canvas ports.Canvas, x, y float64) {
	half := c.opts.HandleSize / 2
	canvas.DrawRect(x-half, y-half, c.opts.HandleSize, c.opts.HandleSize, c.opts.HandleColor)
	canvas.DrawRectStroke(x-half, y-half, c.opts.HandleSize, c.opts.HandleSize, c.opts.Stroke, 1)
}

// EncodeJPEG encodes img as base64 JPEG.
func (c *Compositor) EncodeJPEG(img image.Image) (string, error) {
	data, err := c.renderer.EncodeImage(img, ports.FormatJPEG, c.opts.Quality)
	if err != nil {
		return "", fmt.Errorf("encode composite: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
