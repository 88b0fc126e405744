package ggrenderer

import (
	"image"
	"image/color"
	"testing"

	"github.com/user/scoresplit/pkg/ports"
)

func isWhite(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r == 0xffff && g == 0xffff && b == 0xffff
}

func TestRenderer_CreateCanvas(t *testing.T) {
	r := New()

	img := r.CreateCanvas(1280, 720, color.Black).ToImage()
	if b := img.Bounds(); b.Dx() != 1280 || b.Dy() != 720 {
		t.Errorf("expected 1280x720, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestRenderer_EncodeDecodeJPEG(t *testing.T) {
	r := New()

	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	for y := 0; y < 36; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	data, err := r.EncodeImage(img, ports.FormatJPEG, 80)
	if err != nil {
		t.Fatalf("EncodeImage failed: %v", err)
	}

	decoded, err := r.DecodeImage(data, ports.FormatJPEG)
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 64 || b.Dy() != 36 {
		t.Errorf("expected 64x36, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestRenderer_DecodeRejectsGarbage(t *testing.T) {
	r := New()
	if _, err := r.DecodeImage([]byte("not a jpeg"), ports.FormatJPEG); err == nil {
		t.Error("expected error decoding garbage")
	}
}

func TestRenderer_EncodePNG(t *testing.T) {
	r := New()

	data, err := r.EncodeImage(image.NewRGBA(image.Rect(0, 0, 30, 30)), ports.FormatPNG, 0)
	if err != nil {
		t.Fatalf("EncodeImage failed: %v", err)
	}
	decoded, err := r.DecodeImage(data, ports.FormatPNG)
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 30 || b.Dy() != 30 {
		t.Errorf("expected 30x30, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestRenderer_EncodeUnsupported(t *testing.T) {
	r := New()
	if _, err := r.EncodeImage(image.NewRGBA(image.Rect(0, 0, 1, 1)), ports.ImageFormat(9), 0); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestRenderer_ResizeImage(t *testing.T) {
	for name, r := range map[string]*Renderer{"preview": New(), "high quality": NewHighQuality()} {
		t.Run(name, func(t *testing.T) {
			resized := r.ResizeImage(image.NewRGBA(image.Rect(0, 0, 640, 360)), 1280, 720)
			if b := resized.Bounds(); b.Dx() != 1280 || b.Dy() != 720 {
				t.Errorf("expected 1280x720, got %dx%d", b.Dx(), b.Dy())
			}
		})
	}
}

func TestCanvas_DrawRect(t *testing.T) {
	canvas := New().CreateCanvas(100, 100, color.White)

	canvas.DrawRect(10.5, 10.5, 30, 30, color.RGBA{R: 255, A: 255})

	red, g, _, _ := canvas.ToImage().At(20, 20).RGBA()
	if red == 0 || g != 0 {
		t.Error("expected red pixel inside rectangle")
	}
}

func TestCanvas_DrawRectStroke(t *testing.T) {
	canvas := New().CreateCanvas(100, 100, color.White)

	canvas.DrawRectStroke(20, 30, 50, 50, color.RGBA{B: 255, A: 255}, 5)

	img := canvas.ToImage()
	if isWhite(img.At(20, 50)) {
		t.Error("expected stroked pixel on the left edge")
	}
	if !isWhite(img.At(45, 55)) {
		t.Error("expected the inside of the outline to stay white")
	}
}

func TestCanvas_DrawImage(t *testing.T) {
	canvas := New().CreateCanvas(100, 100, color.White)

	small := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			small.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	canvas.DrawImage(small, 10, 10)

	if isWhite(canvas.ToImage().At(15, 15)) {
		t.Error("expected red pixel from drawn image")
	}
}

func TestCanvas_DrawImageWithOffsetBounds(t *testing.T) {
	canvas := New().CreateCanvas(100, 100, color.White)

	src := image.NewRGBA(image.Rect(0, 0, 60, 60))
	for y := 40; y < 60; y++ {
		for x := 40; x < 60; x++ {
			src.Set(x, y, color.Black)
		}
	}
	sub := src.SubImage(image.Rect(40, 40, 60, 60))
	canvas.DrawImage(sub, 0, 0)

	if isWhite(canvas.ToImage().At(5, 5)) {
		t.Error("sub-image should be drawn at the requested origin")
	}
}

func TestCanvas_DrawLine(t *testing.T) {
	canvas := New().CreateCanvas(100, 100, color.White)

	canvas.DrawLine(50, 0, 50, 100, color.Black, 2)

	if isWhite(canvas.ToImage().At(50, 50)) {
		t.Error("expected non-white pixel on line")
	}
}
