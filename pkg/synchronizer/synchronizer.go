// Package synchronizer ties the streaming session, the seek controller, the
// region overlay and the frame channel together behind a single event loop.
//
// Every UI action and every frame redraw runs on the loop goroutine, so the
// components it owns need no locking of their own.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/user/scoresplit/pkg/compose"
	"github.com/user/scoresplit/pkg/coords"
	"github.com/user/scoresplit/pkg/framechannel"
	"github.com/user/scoresplit/pkg/overlay"
	"github.com/user/scoresplit/pkg/ports"
	"github.com/user/scoresplit/pkg/seek"
	"github.com/user/scoresplit/pkg/session"
	"github.com/user/scoresplit/pkg/split"
)

// closeTimeout bounds the stop_stream delivery when the loop shuts down.
const closeTimeout = 2 * time.Second

var (
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("synchronizer: already running")

	// ErrStopped is returned by actions submitted after the loop exited.
	ErrStopped = errors.New("synchronizer: stopped")

	// ErrNoFrame is returned by AddSplit before any frame arrived.
	ErrNoFrame = errors.New("synchronizer: no frame to cut a trigger from")
)

// View is the presentation state sent to the UI after every change.
type View struct {
	Seq      uint64             `json:"seq"`
	Session  session.Snapshot   `json:"session"`
	Seek     int                `json:"seek"`
	Region   overlay.Region     `json:"region"`
	Handles  overlay.Handles    `json:"handles"`
	FrameSeq uint64             `json:"frame_seq"`
	Stats    framechannel.Stats `json:"stats"`
	Splits   split.Status       `json:"splits"`
	// Image is the composited frame as base64 JPEG. It is empty when only
	// the state changed.
	Image string `json:"image,omitempty"`
}

// Presenter receives views. Present must not block.
type Presenter interface {
	Present(v View)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(v View)

// Present calls f.
func (f PresenterFunc) Present(v View) { f(v) }

// Options configures a Synchronizer.
type Options struct {
	InitialRegion overlay.Region
	Compose       compose.Options
	Split         split.Options
}

// event is one unit of work executed on the loop.
type event struct {
	name   string
	ctx    context.Context
	fn     func(ctx context.Context) (redraw bool, err error)
	result chan error
}

// Synchronizer owns the playback state and serializes all access to it.
type Synchronizer struct {
	backend    ports.Backend
	session    *session.Session
	seek       *seek.Controller
	overlay    *overlay.Controller
	mapper     coords.Mapper
	splits     *split.Manager
	renderer   ports.Renderer
	frames     *framechannel.Channel
	compositor *compose.Compositor
	presenter  Presenter
	sink       ports.DebugSink
	logger     ports.Logger

	events  chan event
	done    chan struct{}
	runOnce sync.Once

	// Loop state.
	lastFrame image.Image
	frameSeq  uint64
	viewSeq   uint64
}

// New wires a Synchronizer around backend. The region starts at
// opts.InitialRegion, which must be valid.
func New(
	backend ports.Backend,
	renderer ports.Renderer,
	presenter Presenter,
	sink ports.DebugSink,
	logger ports.Logger,
	opts Options,
) (*Synchronizer, error) {
	ov, err := overlay.NewController(coords.Identity{}, opts.InitialRegion, logger)
	if err != nil {
		return nil, fmt.Errorf("create overlay: %w", err)
	}
	if presenter == nil {
		presenter = PresenterFunc(func(View) {})
	}

	sess := session.New(backend, logger)
	return &Synchronizer{
		backend:    backend,
		session:    sess,
		seek:       seek.NewController(sess, logger),
		overlay:    ov,
		mapper:     coords.Identity{},
		splits:     split.NewManager(opts.Split, logger),
		renderer:   renderer,
		frames:     framechannel.New(renderer, logger),
		compositor: compose.New(renderer, opts.Compose),
		presenter:  presenter,
		sink:       sink,
		logger:     logger.WithComponent("sync"),
		events:     make(chan event),
		done:       make(chan struct{}),
	}, nil
}

// Run attaches to the backend's frames and serves the event loop until ctx
// is cancelled. On exit the frame subscription is released and the session
// is closed.
func (s *Synchronizer) Run(ctx context.Context) error {
	err := ErrAlreadyRunning
	s.runOnce.Do(func() { err = s.run(ctx) })
	return err
}

func (s *Synchronizer) run(ctx context.Context) error {
	defer close(s.done)

	release, err := s.frames.Attach(s.backend)
	if err != nil {
		return fmt.Errorf("attach frames: %w", err)
	}
	defer release()

	s.logger.Debug("Synchronizer running")
	s.present(true)

	for {
		select {
		case <-ctx.Done():
			s.shutdown(ctx)
			return nil
		case ev := <-s.events:
			redraw, err := ev.fn(ev.ctx)
			if err != nil {
				s.logger.Warn("Action %s failed: %s", ev.name, err)
			}
			ev.result <- err
			s.present(redraw)
		case <-s.frames.Ready():
			s.renderFrame()
		}
	}
}

func (s *Synchronizer) shutdown(ctx context.Context) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := s.session.Close(closeCtx); err != nil {
		s.logger.Warn("Failed to close session: %s", err)
	}
	s.logger.Debug("Synchronizer stopped")
}

// Done is closed when the loop has exited.
func (s *Synchronizer) Done() <-chan struct{} {
	return s.done
}

func (s *Synchronizer) do(ctx context.Context, name string, fn func(ctx context.Context) (bool, error)) error {
	ev := event{name: name, ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case s.events <- ev:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrStopped
	}
	select {
	case err := <-ev.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start asks the backend to stream live frames.
func (s *Synchronizer) Start(ctx context.Context) error {
	return s.do(ctx, "start", func(ctx context.Context) (bool, error) {
		return false, s.session.Start(ctx)
	})
}

// Stop stops the live stream.
func (s *Synchronizer) Stop(ctx context.Context) error {
	return s.do(ctx, "stop", func(ctx context.Context) (bool, error) {
		return false, s.session.Stop(ctx)
	})
}

// Open lets picker choose a video and binds it. The seek position returns
// to the start of the new video.
func (s *Synchronizer) Open(ctx context.Context, picker ports.FilePicker) error {
	return s.do(ctx, "open", func(ctx context.Context) (bool, error) {
		picked := false
		tracked := ports.PickerFunc(func(ctx context.Context) (string, bool, error) {
			path, ok, err := picker.Pick(ctx)
			picked = ok && err == nil
			return path, ok, err
		})
		err := s.session.Open(ctx, tracked)
		// A released source leaves the session at 0 even when the new
		// video fails to open.
		if picked && s.session.LastSeek() == 0 {
			s.seek.Reset()
		}
		return false, err
	})
}

// SliderChanged seeks to the slider value.
func (s *Synchronizer) SliderChanged(ctx context.Context, value int) error {
	return s.do(ctx, "seek", func(ctx context.Context) (bool, error) {
		_, err := s.seek.SetFromSlider(ctx, value)
		return false, err
	})
}

// Wheel nudges the seek position by one step against the wheel direction.
func (s *Synchronizer) Wheel(ctx context.Context, deltaY float64) error {
	return s.do(ctx, "wheel", func(ctx context.Context) (bool, error) {
		_, err := s.seek.Wheel(ctx, deltaY)
		return false, err
	})
}

// DragEnd moves the region to the reported display position and commits it.
func (s *Synchronizer) DragEnd(ctx context.Context, p coords.Point) error {
	return s.do(ctx, "drag", func(ctx context.Context) (bool, error) {
		r := s.overlay.DragEnd(p)
		return true, s.session.CommitRegion(ctx, r.Payload())
	})
}

// TransformEnd applies a resize gesture and commits the region.
func (s *Synchronizer) TransformEnd(ctx context.Context, p coords.Point, scaleX, scaleY float64) error {
	return s.do(ctx, "transform", func(ctx context.Context) (bool, error) {
		r := s.overlay.TransformEnd(p, scaleX, scaleY)
		return true, s.session.CommitRegion(ctx, r.Payload())
	})
}

// SetDisplaySize tells the synchronizer how large the UI draws the canvas,
// so reported gesture positions map back to canvas pixels.
func (s *Synchronizer) SetDisplaySize(ctx context.Context, width, height int) error {
	return s.do(ctx, "resize", func(ctx context.Context) (bool, error) {
		cw, ch := s.compositor.Size()
		s.mapper = coords.NewScaled(width, height, cw, ch)
		s.overlay.SetMapper(s.mapper)
		return false, nil
	})
}

// AddSplit cuts a trigger template from the latest frame at the reported
// display rectangle and pairs it with the committed score region.
func (s *Synchronizer) AddSplit(ctx context.Context, topLeft coords.Point, width, height float64) error {
	return s.do(ctx, "add_split", func(ctx context.Context) (bool, error) {
		if s.lastFrame == nil {
			return false, ErrNoFrame
		}
		p := s.mapper.MapPoint(topLeft)
		size := s.mapper.MapDelta(coords.Point{X: width, Y: height})
		trigger, err := split.Crop(split.Grayscale(s.canvasFrame()), overlay.Region{X: p.X, Y: p.Y, Width: size.X, Height: size.Y})
		if err != nil {
			return false, fmt.Errorf("cut trigger: %w", err)
		}
		_, err = s.splits.Add(trigger, s.overlay.Region())
		return false, err
	})
}

// ResetSplits rewinds split detection to the first split. With drop set
// every split is removed.
func (s *Synchronizer) ResetSplits(ctx context.Context, drop bool) error {
	return s.do(ctx, "reset_splits", func(ctx context.Context) (bool, error) {
		if drop {
			s.splits.Clear()
		} else {
			s.splits.Reset()
		}
		return false, nil
	})
}

// Current returns a fully rendered view of the current state, for UI
// clients that just connected.
func (s *Synchronizer) Current(ctx context.Context) (View, error) {
	var v View
	err := s.do(ctx, "current", func(ctx context.Context) (bool, error) {
		v = s.view(true)
		return false, nil
	})
	return v, err
}

// renderFrame takes the latest frame, if any, and presents it with the overlay.
func (s *Synchronizer) renderFrame() {
	f, ok := s.frames.Take()
	if !ok {
		return
	}
	s.lastFrame = f.Image
	s.frameSeq = f.Seq
	if s.sink != nil && s.sink.Enabled() {
		if err := s.sink.SaveFrame(f.Seq, f.Data); err != nil {
			s.logger.Warn("Failed to save debug output: %s", err)
		}
	}
	s.checkSplit()
	s.present(true)
}

// checkSplit looks for the pending split's trigger in the latest frame.
func (s *Synchronizer) checkSplit() {
	if !s.splits.Pending() {
		return
	}
	match, ok, err := s.splits.Check(s.canvasFrame())
	if err != nil {
		s.logger.Warn("Split check failed: %s", err)
		return
	}
	if !ok || s.sink == nil || !s.sink.Enabled() {
		return
	}
	if err := s.sink.SaveScore(match.Index, s.frameSeq, match.Score); err != nil {
		s.logger.Warn("Failed to save debug output: %s", err)
	}
}

// canvasFrame returns the latest frame scaled to the canvas, the space the
// region and split triggers live in.
func (s *Synchronizer) canvasFrame() image.Image {
	cw, ch := s.compositor.Size()
	b := s.lastFrame.Bounds()
	if b.Dx() == cw && b.Dy() == ch {
		return s.lastFrame
	}
	return s.renderer.ResizeImage(s.lastFrame, cw, ch)
}

func (s *Synchronizer) present(redraw bool) {
	v := s.view(redraw)
	s.presenter.Present(v)

	if s.sink == nil || !s.sink.Enabled() {
		return
	}
	data, err := sonic.Marshal(v)
	if err == nil {
		err = s.sink.SaveViewJSON(v.Seq, data)
	}
	if err != nil {
		s.logger.Warn("Failed to save debug output: %s", err)
	}
}

// view builds the next view. With redraw set the frame is composited.
func (s *Synchronizer) view(redraw bool) View {
	s.viewSeq++
	v := View{
		Seq:      s.viewSeq,
		Session:  s.session.Snapshot(),
		Seek:     s.seek.Position(),
		Region:   s.overlay.Region(),
		Handles:  s.overlay.Handles(),
		FrameSeq: s.frameSeq,
		Stats:    s.frames.Stats(),
		Splits:   s.splits.Status(),
	}
	if !redraw {
		return v
	}

	img := s.compositor.Compose(s.lastFrame, v.Region, v.Handles)
	encoded, err := s.compositor.EncodeJPEG(img)
	if err != nil {
		s.logger.Warn("Failed to render view: %s", err)
		return v
	}
	v.Image = encoded
	if s.sink != nil && s.sink.Enabled() {
		if err := s.sink.SaveComposite(v.Seq, img); err != nil {
			s.logger.Warn("Failed to save debug output: %s", err)
		}
	}
	return v
}
