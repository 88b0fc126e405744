package mocks

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/user/scoresplit/pkg/ports"
)

// ErrUndecodable is returned by Renderer.DecodeImage for data starting with "bad".
var ErrUndecodable = errors.New("mock: undecodable image")

// Renderer is a mock implementation of ports.Renderer.
// Without DecodeImageFunc it decodes anything except data prefixed "bad"
// into a 100x100 image.
type Renderer struct {
	CreateCanvasFunc func(width, height int, bg color.Color) ports.Canvas
	DecodeImageFunc  func(data []byte, format ports.ImageFormat) (image.Image, error)
	EncodeImageFunc  func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error)
	ResizeImageFunc  func(img image.Image, width, height int) image.Image

	mu       sync.Mutex
	canvases []*Canvas
}

func (m *Renderer) CreateCanvas(width, height int, bg color.Color) ports.Canvas {
	if m.CreateCanvasFunc != nil {
		return m.CreateCanvasFunc(width, height, bg)
	}
	c := &Canvas{Width: width, Height: height}
	m.mu.Lock()
	m.canvases = append(m.canvases, c)
	m.mu.Unlock()
	return c
}

func (m *Renderer) DecodeImage(data []byte, format ports.ImageFormat) (image.Image, error) {
	if m.DecodeImageFunc != nil {
		return m.DecodeImageFunc(data, format)
	}
	if len(data) >= 3 && string(data[:3]) == "bad" {
		return nil, ErrUndecodable
	}
	return image.NewRGBA(image.Rect(0, 0, 100, 100)), nil
}

func (m *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	if m.EncodeImageFunc != nil {
		return m.EncodeImageFunc(img, format, quality)
	}
	b := img.Bounds()
	return []byte(fmt.Sprintf("img:%dx%d", b.Dx(), b.Dy())), nil
}

func (m *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	if m.ResizeImageFunc != nil {
		return m.ResizeImageFunc(img, width, height)
	}
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

// Canvases returns the canvases created so far.
func (m *Renderer) Canvases() []*Canvas {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Canvas, len(m.canvases))
	copy(out, m.canvases)
	return out
}

// LastCanvas returns the most recently created canvas, or nil.
func (m *Renderer) LastCanvas() *Canvas {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.canvases) == 0 {
		return nil
	}
	return m.canvases[len(m.canvases)-1]
}

var _ ports.Renderer = (*Renderer)(nil)

// Canvas is a mock implementation of ports.Canvas that records draw calls.
type Canvas struct {
	Width  int
	Height int
	Ops    []string
}

func (m *Canvas) DrawImage(img image.Image, x, y int) {
	b := img.Bounds()
	m.Ops = append(m.Ops, fmt.Sprintf("image %dx%d at %d,%d", b.Dx(), b.Dy(), x, y))
}

func (m *Canvas) DrawRect(x, y, w, h float64, c color.Color) {
	m.Ops = append(m.Ops, fmt.Sprintf("rect %.0f,%.0f %.0fx%.0f", x, y, w, h))
}

func (m *Canvas) DrawRectStroke(x, y, w, h float64, c color.Color, strokeWidth float64) {
	m.Ops = append(m.Ops, fmt.Sprintf("stroke %.0f,%.0f %.0fx%.0f w%.0f", x, y, w, h, strokeWidth))
}

func (m *Canvas) DrawLine(x1, y1, x2, y2 float64, c color.Color, width float64) {
	m.Ops = append(m.Ops, fmt.Sprintf("line %.0f,%.0f-%.0f,%.0f", x1, y1, x2, y2))
}

func (m *Canvas) ToImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
}

var _ ports.Canvas = (*Canvas)(nil)
