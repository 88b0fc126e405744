// Package ports defines interfaces for external dependencies.
package ports

import (
	"context"
)

// Event names a notification exchanged with the video backend.
type Event string

const (
	// EventStopStream asks the backend to cease producing live frames.
	EventStopStream Event = "stop_stream"
	// EventVideoSeek asks the backend to reposition playback.
	EventVideoSeek Event = "video_seek"
	// EventOpenVideo announces that a new source is about to be opened.
	// The backend releases the current source when it sees it.
	EventOpenVideo Event = "open_video"
	// EventRegionCommitted reports a new score region.
	EventRegionCommitted Event = "region_committed"
	// EventUpdateFrame carries a newly decoded frame from the backend.
	EventUpdateFrame Event = "update_frame"
)

// Notification is a broadcast to the backend. Only the field matching
// Event is meaningful.
type Notification struct {
	Event    Event
	Position int            // EventVideoSeek: seek position in [0, 100000]
	Region   *RegionPayload // EventRegionCommitted
}

// RegionPayload is the score region as seen by the backend.
type RegionPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FrameHandler receives the base64-encoded JPEG payload of a frame update.
type FrameHandler func(payload string)

// FrameSource delivers frame updates asynchronously.
type FrameSource interface {
	// Subscribe registers handler for frame updates and returns the function
	// that removes it. The handler may be called from any goroutine.
	Subscribe(handler FrameHandler) (unsubscribe func())
}

// CommandDispatcher sends commands and broadcasts to the backend.
// Every call reports whether the backend accepted it.
type CommandDispatcher interface {
	// StartStream begins producing live frame updates.
	StartStream(ctx context.Context) error

	// OpenVideo switches the decode source to path.
	OpenVideo(ctx context.Context, path string) error

	// Broadcast delivers a notification that carries no reply payload.
	Broadcast(ctx context.Context, n Notification) error
}

// Backend is the full contract of a video decoding/streaming backend.
type Backend interface {
	CommandDispatcher
	FrameSource

	// Close releases the backend and stops all frame production.
	Close() error
}
