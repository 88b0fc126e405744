// Package summarizer provides summary generation for editing sessions.
package summarizer

import "time"

// Summary contains the final state of an editing session.
type Summary struct {
	// Metadata
	GeneratedAt time.Time
	Uptime      time.Duration

	// Session state at shutdown
	Session SessionInfo

	// Committed score region
	Region RegionInfo

	// Frame channel counters
	Frames FrameInfo

	// Split detection progress
	Splits SplitInfo

	// Process settings
	Settings Settings
}

// SessionInfo describes the streaming session.
type SessionInfo struct {
	State    string
	Source   string
	LastSeek int
}

// RegionInfo is the score region in canvas coordinates.
type RegionInfo struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// FrameInfo contains frame delivery counters.
type FrameInfo struct {
	Received  uint64
	Dropped   uint64
	Malformed uint64
	LastSeq   uint64
}

// DropRate returns the share of received frames that were superseded
// before being shown.
func (f FrameInfo) DropRate() float64 {
	if f.Received == 0 {
		return 0
	}
	return float64(f.Dropped) / float64(f.Received)
}

// SplitInfo describes split detection progress.
type SplitInfo struct {
	Count     int
	Triggered int
}

// Settings contains the process configuration.
type Settings struct {
	Backend         string
	CanvasWidth     int
	CanvasHeight    int
	FrameIntervalMs int
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSession sets session information.
func (b *Builder) WithSession(state, source string, lastSeek int) *Builder {
	b.summary.Session = SessionInfo{
		State:    state,
		Source:   source,
		LastSeek: lastSeek,
	}
	return b
}

// WithRegion sets the score region.
func (b *Builder) WithRegion(x, y, width, height float64) *Builder {
	b.summary.Region = RegionInfo{X: x, Y: y, Width: width, Height: height}
	return b
}

// WithFrames sets frame counters.
func (b *Builder) WithFrames(frames FrameInfo) *Builder {
	b.summary.Frames = frames
	return b
}

// WithSplits sets split progress.
func (b *Builder) WithSplits(count, triggered int) *Builder {
	b.summary.Splits = SplitInfo{Count: count, Triggered: triggered}
	return b
}

// WithSettings sets process settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// WithUptime sets how long the session ran.
func (b *Builder) WithUptime(d time.Duration) *Builder {
	b.summary.Uptime = d
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
