package ports

import (
	"image"
	"image/color"
)

// ImageDecoder turns encoded image bytes into an image.Image.
type ImageDecoder interface {
	// DecodeImage decodes image data into an image.Image.
	DecodeImage(data []byte, format ImageFormat) (image.Image, error)
}

// Renderer abstracts image processing operations.
type Renderer interface {
	ImageDecoder

	// CreateCanvas creates a new drawing canvas with the specified dimensions and background color.
	CreateCanvas(width, height int, bg color.Color) Canvas

	// EncodeImage encodes an image to the specified format.
	EncodeImage(img image.Image, format ImageFormat, quality int) ([]byte, error)

	// ResizeImage resizes an image to the specified dimensions.
	ResizeImage(img image.Image, width, height int) image.Image
}

// Canvas provides the drawing operations needed to overlay a score region on a frame.
type Canvas interface {
	// DrawImage draws an image at the specified position.
	DrawImage(img image.Image, x, y int)

	// DrawRect draws a filled rectangle.
	DrawRect(x, y, w, h float64, c color.Color)

	// DrawRectStroke draws a rectangle outline. The stroke width is in
	// canvas pixels and does not scale with the rectangle.
	DrawRectStroke(x, y, w, h float64, c color.Color, strokeWidth float64)

	// DrawLine draws a line between two points.
	DrawLine(x1, y1, x2, y2 float64, c color.Color, width float64)

	// ToImage returns the canvas as an image.Image.
	ToImage() image.Image
}

// ImageFormat specifies image encoding format.
type ImageFormat int

const (
	FormatJPEG ImageFormat = iota
	FormatPNG
)
