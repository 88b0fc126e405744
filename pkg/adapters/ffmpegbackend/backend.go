// Package ffmpegbackend is the in-process video backend.
//
// An opened video is previewed by grabbing the frame at the current seek
// time every FrameInterval. A live stream grabs frames from a capture device
// until stop_stream arrives. Both loops emit base64 JPEG payloads to every
// subscriber.
package ffmpegbackend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/scoresplit/pkg/ports"
	"github.com/user/scoresplit/pkg/seek"
)

const defaultFrameInterval = 100 * time.Millisecond

var (
	// ErrClosed is returned by every command after Close.
	ErrClosed = errors.New("ffmpegbackend: closed")

	// ErrUnknownEvent is returned for broadcasts the backend does not handle.
	ErrUnknownEvent = errors.New("ffmpegbackend: unknown event")
)

// DurationProber reports the playback length of a video file.
type DurationProber interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Options configures the backend.
type Options struct {
	// FrameInterval paces both frame loops.
	FrameInterval time.Duration
	// CaptureDevice is passed to Grabber.Capture. Empty selects the default camera.
	CaptureDevice string
}

// loop is a running frame loop.
type loop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *loop) stop() {
	l.cancel()
	<-l.done
}

// video is the currently bound file.
type video struct {
	path     string
	duration time.Duration
	position time.Duration
}

// Backend implements ports.Backend on top of a Grabber.
type Backend struct {
	grabber Grabber
	prober  DurationProber
	opts    Options
	logger  ports.Logger

	// openMu serializes OpenVideo so only one preview loop is ever installed.
	openMu sync.Mutex

	mu       sync.Mutex
	closed   bool
	handlers map[int]ports.FrameHandler
	nextID   int
	video    *video
	preview  *loop
	live     *loop
}

// New creates a backend.
func New(grabber Grabber, prober DurationProber, opts Options, logger ports.Logger) *Backend {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = defaultFrameInterval
	}
	return &Backend{
		grabber:  grabber,
		prober:   prober,
		opts:     opts,
		logger:   logger.WithComponent("backend"),
		handlers: make(map[int]ports.FrameHandler),
	}
}

// StartStream starts the live capture loop. It is a no-op while one runs.
func (b *Backend) StartStream(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.live != nil {
		return nil
	}
	device := b.opts.CaptureDevice
	b.live = b.spawn(func(ctx context.Context) ([]byte, error) {
		return b.grabber.Capture(ctx, device)
	})
	b.logger.Info("Capture started on %s", displayDevice(device))
	return nil
}

// OpenVideo binds path and starts previewing it from the beginning.
func (b *Backend) OpenVideo(ctx context.Context, path string) error {
	b.openMu.Lock()
	defer b.openMu.Unlock()

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	duration, err := b.prober.Duration(ctx, path)
	if err != nil {
		return fmt.Errorf("probe video: %w", err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	prev := b.preview
	b.preview = nil
	b.mu.Unlock()
	if prev != nil {
		prev.stop()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	v := &video{path: path, duration: duration}
	b.video = v

	// The preview re-emits the cached frame while the position is unchanged.
	var (
		cached    []byte
		cachedPos time.Duration = -1
	)
	b.preview = b.spawn(func(ctx context.Context) ([]byte, error) {
		b.mu.Lock()
		pos := v.position
		b.mu.Unlock()
		if pos == cachedPos && cached != nil {
			return cached, nil
		}
		frame, err := b.grabber.FrameAt(ctx, v.path, pos)
		if err != nil {
			return nil, err
		}
		cached, cachedPos = frame, pos
		return frame, nil
	})
	b.logger.Info("Opened video %s", path)
	b.logger.Debug("Video %s is %s long", path, duration)
	return nil
}

// Broadcast handles stop_stream, video_seek, open_video and region_committed.
func (b *Backend) Broadcast(ctx context.Context, n ports.Notification) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}

	switch n.Event {
	case ports.EventStopStream:
		live := b.live
		b.live = nil
		b.mu.Unlock()
		if live != nil {
			live.stop()
			b.logger.Info("Capture stopped")
		}
		return nil

	case ports.EventVideoSeek:
		defer b.mu.Unlock()
		if b.video == nil {
			b.logger.Warn("Seek to %d ignored: no video open", n.Position)
			return nil
		}
		if n.Position < 0 || n.Position > seek.MaxPosition {
			b.logger.Warn("Seek to %d ignored: out of range", n.Position)
			return nil
		}
		b.video.position = positionToTime(n.Position, b.video.duration)
		return nil

	case ports.EventOpenVideo:
		preview := b.preview
		b.preview = nil
		b.video = nil
		b.mu.Unlock()
		if preview != nil {
			preview.stop()
		}
		return nil

	case ports.EventRegionCommitted:
		b.mu.Unlock()
		if n.Region != nil {
			b.logger.Info("Region committed: %.0f,%.0f %.0fx%.0f",
				n.Region.X, n.Region.Y, n.Region.Width, n.Region.Height)
		}
		return nil

	default:
		b.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownEvent, n.Event)
	}
}

// Subscribe implements ports.FrameSource.
func (b *Backend) Subscribe(handler ports.FrameHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Close stops both loops. Later commands fail with ErrClosed.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	loops := []*loop{b.preview, b.live}
	b.preview, b.live, b.video = nil, nil, nil
	b.mu.Unlock()

	for _, l := range loops {
		if l != nil {
			l.stop()
		}
	}
	return nil
}

// Position returns the seek time of the bound video.
func (b *Backend) Position() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.video == nil {
		return 0, false
	}
	return b.video.position, true
}

// Previewing reports whether a video preview loop runs.
func (b *Backend) Previewing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.preview != nil
}

// Streaming reports whether the live capture loop runs.
func (b *Backend) Streaming() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live != nil
}

// spawn runs grab every FrameInterval until the returned loop is stopped.
// Must be called with b.mu held.
func (b *Backend) spawn(grab func(ctx context.Context) ([]byte, error)) *loop {
	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(b.opts.FrameInterval)
		defer ticker.Stop()

		for {
			frame, err := grab(ctx)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				b.logger.Warn("Frame grab failed: %s", err)
			default:
				b.emit(base64.StdEncoding.EncodeToString(frame))
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return l
}

func (b *Backend) emit(payload string) {
	b.mu.Lock()
	handlers := make([]ports.FrameHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

// positionToTime maps a slider position to an offset into a video of
// length d.
func positionToTime(pos int, d time.Duration) time.Duration {
	return time.Duration(float64(d) * float64(pos) / float64(seek.MaxPosition))
}

func displayDevice(device string) string {
	if device == "" {
		return "default device"
	}
	return device
}

// Ensure Backend implements ports.Backend
var _ ports.Backend = (*Backend)(nil)
