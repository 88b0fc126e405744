package ports

import (
	"image"
)

// DebugSink abstracts debug output for frames flowing through the synchronizer.
// It allows inspecting what the backend delivered and what the operator saw.
type DebugSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SaveFrame saves a frame as received from the backend (JPEG bytes).
	SaveFrame(seq uint64, data []byte) error

	// SaveComposite saves the frame with the region overlay drawn on it.
	SaveComposite(seq uint64, img image.Image) error

	// SaveViewJSON saves the presented view state as JSON.
	SaveViewJSON(seq uint64, data []byte) error

	// SaveScore saves the score region cropped when split index triggered
	// on frame seq.
	SaveScore(index int, seq uint64, img image.Image) error
}
