// Package session implements the streaming session state machine that owns
// the stream lifecycle and dispatches commands to the video backend.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/scoresplit/pkg/ports"
)

// State is the lifecycle state of a streaming session.
type State int

const (
	// StateIdle is the initial state: no live stream is running.
	StateIdle State = iota
	// StateOpening is held while a new source is being announced and opened.
	StateOpening
	// StateStreaming means the backend was asked to produce live frames.
	StateStreaming
	// StateStopped is terminal; the session was closed at teardown.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyStreaming is returned by Start while a stream is running.
	ErrAlreadyStreaming = errors.New("session: already streaming")

	// ErrNotStreaming is returned by Stop when no stream is running.
	ErrNotStreaming = errors.New("session: not streaming")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session: closed")
)

// VideoSource identifies the video file bound to the session.
type VideoSource struct {
	Path string
}

// Snapshot is a read-only copy of the session state for presentation.
type Snapshot struct {
	State    string `json:"state"`
	Source   string `json:"source,omitempty"`
	LastSeek int    `json:"last_seek"`
}

// Session is the single streaming session of the process.
// It is not safe for concurrent use; the synchronizer owns it.
type Session struct {
	backend  ports.CommandDispatcher
	logger   ports.Logger
	state    State
	source   *VideoSource
	lastSeek int
}

// New creates a session in StateIdle.
func New(backend ports.CommandDispatcher, logger ports.Logger) *Session {
	return &Session{
		backend: backend,
		logger:  logger.WithComponent("session"),
		state:   StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Source returns the bound video source, if any.
func (s *Session) Source() (VideoSource, bool) {
	if s.source == nil {
		return VideoSource{}, false
	}
	return *s.source, true
}

// LastSeek returns the last seek position delivered to the backend.
func (s *Session) LastSeek() int {
	return s.lastSeek
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{State: s.state.String(), LastSeek: s.lastSeek}
	if s.source != nil {
		snap.Source = s.source.Path
	}
	return snap
}

// Start asks the backend to begin streaming. Starting twice is rejected
// without dispatching a second command.
func (s *Session) Start(ctx context.Context) error {
	switch s.state {
	case StateStopped:
		return ErrClosed
	case StateStreaming:
		return ErrAlreadyStreaming
	}

	if err := s.backend.StartStream(ctx); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	s.state = StateStreaming
	s.logger.Info("Stream started")
	return nil
}

// Stop broadcasts stop_stream and returns to StateIdle. If the broadcast
// cannot be delivered the session stays in StateStreaming.
func (s *Session) Stop(ctx context.Context) error {
	switch s.state {
	case StateStopped:
		return ErrClosed
	case StateStreaming:
	default:
		return ErrNotStreaming
	}

	if err := s.backend.Broadcast(ctx, ports.Notification{Event: ports.EventStopStream}); err != nil {
		return fmt.Errorf("stop stream: %w", err)
	}
	s.state = StateIdle
	s.logger.Info("Stream stopped")
	return nil
}

// Open asks picker for a file and binds it as the new source.
//
// A cancelled selection is a no-op. Otherwise the session announces the
// switch with an open_video broadcast, so the backend releases the current
// source, and only then dispatches the open_video command. The session
// returns to the lifecycle state it had before the call.
func (s *Session) Open(ctx context.Context, picker ports.FilePicker) error {
	if s.state == StateStopped {
		return ErrClosed
	}

	path, ok, err := picker.Pick(ctx)
	if err != nil {
		return fmt.Errorf("pick video: %w", err)
	}
	if !ok {
		s.logger.Debug("Video selection cancelled")
		return nil
	}

	prior := s.state
	s.state = StateOpening
	defer func() { s.state = prior }()

	if err := s.backend.Broadcast(ctx, ports.Notification{Event: ports.EventOpenVideo}); err != nil {
		return fmt.Errorf("announce open: %w", err)
	}
	// The previous source is released once the announcement is delivered.
	s.source = nil
	s.lastSeek = 0

	if err := s.backend.OpenVideo(ctx, path); err != nil {
		return fmt.Errorf("open video %s: %w", path, err)
	}
	s.source = &VideoSource{Path: path}
	s.logger.Info("Opened video %s", path)
	return nil
}

// Seek broadcasts a seek position. It implements seek.Emitter.
func (s *Session) Seek(ctx context.Context, position int) error {
	if s.state == StateStopped {
		return ErrClosed
	}
	if err := s.backend.Broadcast(ctx, ports.Notification{Event: ports.EventVideoSeek, Position: position}); err != nil {
		return err
	}
	s.lastSeek = position
	return nil
}

// CommitRegion broadcasts the committed score region for downstream consumers.
func (s *Session) CommitRegion(ctx context.Context, region *ports.RegionPayload) error {
	if s.state == StateStopped {
		return ErrClosed
	}
	if err := s.backend.Broadcast(ctx, ports.Notification{Event: ports.EventRegionCommitted, Region: region}); err != nil {
		return fmt.Errorf("commit region: %w", err)
	}
	return nil
}

// Close ends the session. A running stream is stopped first; a failure to
// deliver that stop is logged and does not prevent the session from closing.
// Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	if s.state == StateStopped {
		return nil
	}
	var err error
	if s.state == StateStreaming {
		if err = s.backend.Broadcast(ctx, ports.Notification{Event: ports.EventStopStream}); err != nil {
			s.logger.Warn("Failed to stop stream on close: %s", err)
			err = fmt.Errorf("stop stream on close: %w", err)
		}
	}
	s.state = StateStopped
	s.source = nil
	return err
}
