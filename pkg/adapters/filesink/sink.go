// Package filesink provides a file-based debug sink implementation.
//
// Layout under the base directory:
//
//	frames/frame-000001.jpg      frames as received from the backend
//	composites/view-000001.png   frames with the region overlay
//	views/view-000001.json       presented view state
//	scores/split-00-000001.png   score regions cut when a split triggers
package filesink

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/user/scoresplit/pkg/ports"
)

// Sink saves debug output to files.
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer
}

// New creates a new FileSink.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer) *Sink {
	return &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
	}
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// SaveFrame saves a received JPEG frame.
func (s *Sink) SaveFrame(seq uint64, data []byte) error {
	return s.write("frames", fmt.Sprintf("frame-%06d.jpg", seq), data)
}

// SaveComposite saves a composited view as PNG.
func (s *Sink) SaveComposite(seq uint64, img image.Image) error {
	data, err := s.renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("encode composite: %w", err)
	}
	return s.write("composites", fmt.Sprintf("view-%06d.png", seq), data)
}

// SaveViewJSON saves a presented view as JSON.
func (s *Sink) SaveViewJSON(seq uint64, data []byte) error {
	return s.write("views", fmt.Sprintf("view-%06d.json", seq), data)
}

// SaveScore saves a cropped score region as PNG.
func (s *Sink) SaveScore(index int, seq uint64, img image.Image) error {
	data, err := s.renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("encode score: %w", err)
	}
	return s.write("scores", fmt.Sprintf("split-%02d-%06d.png", index, seq), data)
}

func (s *Sink) write(subdir, name string, data []byte) error {
	dir := filepath.Join(s.baseDir, subdir)
	if err := s.fs.MkdirAll(dir); err != nil {
		return err
	}
	return s.fs.WriteFile(filepath.Join(dir, name), data)
}

// Ensure Sink implements ports.DebugSink
var _ ports.DebugSink = (*Sink)(nil)
