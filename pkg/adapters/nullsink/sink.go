// Package nullsink provides a no-op debug sink implementation.
package nullsink

import (
	"image"

	"github.com/user/scoresplit/pkg/ports"
)

// Sink is a no-op implementation of ports.DebugSink.
// It discards all debug output.
type Sink struct{}

// New creates a new NullSink.
func New() *Sink {
	return &Sink{}
}

// Enabled returns false as this sink discards all output.
func (s *Sink) Enabled() bool {
	return false
}

// SaveFrame does nothing.
func (s *Sink) SaveFrame(seq uint64, data []byte) error {
	return nil
}

// SaveComposite does nothing.
func (s *Sink) SaveComposite(seq uint64, img image.Image) error {
	return nil
}

// SaveViewJSON does nothing.
func (s *Sink) SaveViewJSON(seq uint64, data []byte) error {
	return nil
}

// SaveScore does nothing.
func (s *Sink) SaveScore(index int, seq uint64, img image.Image) error {
	return nil
}

// Ensure Sink implements ports.DebugSink
var _ ports.DebugSink = (*Sink)(nil)
