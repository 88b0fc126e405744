package mocks

import (
	"fmt"
	"image"
	"sync"

	"github.com/user/scoresplit/pkg/ports"
)

// DebugSink is a mock implementation of ports.DebugSink.
type DebugSink struct {
	mu sync.RWMutex

	enabled bool

	Frames     map[uint64][]byte
	Composites map[uint64]image.Image
	Views      map[uint64][]byte
	Scores     map[string]image.Image
}

// NewDebugSink creates a new mock DebugSink.
func NewDebugSink(enabled bool) *DebugSink {
	return &DebugSink{
		enabled:    enabled,
		Frames:     make(map[uint64][]byte),
		Composites: make(map[uint64]image.Image),
		Views:      make(map[uint64][]byte),
		Scores:     make(map[string]image.Image),
	}
}

func (m *DebugSink) Enabled() bool {
	return m.enabled
}

func (m *DebugSink) SaveFrame(seq uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frames[seq] = data
	return nil
}

func (m *DebugSink) SaveComposite(seq uint64, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Composites[seq] = img
	return nil
}

func (m *DebugSink) SaveViewJSON(seq uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Views[seq] = data
	return nil
}

// SaveScore stores img under "<index>@<seq>".
func (m *DebugSink) SaveScore(index int, seq uint64, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Scores[fmt.Sprintf("%d@%d", index, seq)] = img
	return nil
}

// Score returns the score image saved for split index on frame seq.
func (m *DebugSink) Score(index int, seq uint64) (image.Image, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	img, ok := m.Scores[fmt.Sprintf("%d@%d", index, seq)]
	return img, ok
}

// Counts returns the number of saved frames, composites and views.
func (m *DebugSink) Counts() (frames, composites, views int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Frames), len(m.Composites), len(m.Views)
}

var _ ports.DebugSink = (*DebugSink)(nil)
