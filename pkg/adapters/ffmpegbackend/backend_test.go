package ffmpegbackend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/scoresplit/pkg/adapters/logger"
	"github.com/user/scoresplit/pkg/ports"
)

// fakeGrabber returns frames naming their source, e.g. "run.mp4@5s".
type fakeGrabber struct {
	mu       sync.Mutex
	fileErr  error
	fileHits int
}

func (g *fakeGrabber) FrameAt(ctx context.Context, path string, at time.Duration) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fileHits++
	if g.fileErr != nil {
		return nil, g.fileErr
	}
	return []byte(fmt.Sprintf("%s@%s", path, at)), nil
}

func (g *fakeGrabber) Capture(ctx context.Context, device string) ([]byte, error) {
	return []byte("live:" + device), nil
}

func (g *fakeGrabber) hits() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fileHits
}

type fakeProber struct {
	duration time.Duration
	err      error
}

func (p fakeProber) Duration(ctx context.Context, path string) (time.Duration, error) {
	return p.duration, p.err
}

// collector gathers decoded frame payloads.
type collector struct {
	ch chan string
}

func subscribe(t *testing.T, b *Backend) *collector {
	t.Helper()
	c := &collector{ch: make(chan string, 256)}
	unsubscribe := b.Subscribe(func(payload string) {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			t.Errorf("payload is not base64: %v", err)
			return
		}
		select {
		case c.ch <- string(data):
		default:
		}
	})
	t.Cleanup(unsubscribe)
	return c
}

// waitFor reads frames until want arrives.
func (c *collector) waitFor(t *testing.T, want string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-c.ch:
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("frame %q never arrived", want)
		}
	}
}

func newBackend(t *testing.T, g Grabber, p DurationProber) *Backend {
	t.Helper()
	b := New(g, p, Options{FrameInterval: 5 * time.Millisecond, CaptureDevice: "/dev/video2"}, logger.NewNoop())
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBackend_PreviewFollowsSeek(t *testing.T) {
	b := newBackend(t, &fakeGrabber{}, fakeProber{duration: 10 * time.Second})
	frames := subscribe(t, b)
	ctx := context.Background()

	if err := b.OpenVideo(ctx, "run.mp4"); err != nil {
		t.Fatalf("OpenVideo failed: %v", err)
	}
	frames.waitFor(t, "run.mp4@0s")

	if err := b.Broadcast(ctx, ports.Notification{Event: ports.EventVideoSeek, Position: 50000}); err != nil {
		t.Fatal(err)
	}
	frames.waitFor(t, "run.mp4@5s")

	if pos, ok := b.Position(); !ok || pos != 5*time.Second {
		t.Errorf("Position = %v, %v; want 5s", pos, ok)
	}
}

func TestBackend_SeekOutOfRangeIgnored(t *testing.T) {
	b := newBackend(t, &fakeGrabber{}, fakeProber{duration: 10 * time.Second})
	ctx := context.Background()
	if err := b.OpenVideo(ctx, "run.mp4"); err != nil {
		t.Fatal(err)
	}
	b.Broadcast(ctx, ports.Notification{Event: ports.EventVideoSeek, Position: 10000})

	for _, pos := range []int{-1, 100001} {
		if err := b.Broadcast(ctx, ports.Notification{Event: ports.EventVideoSeek, Position: pos}); err != nil {
			t.Errorf("seek %d returned %v, want nil", pos, err)
		}
	}
	if got, _ := b.Position(); got != time.Second {
		t.Errorf("Position = %v, want 1s to survive out-of-range seeks", got)
	}
}

func TestBackend_SeekWithoutVideo(t *testing.T) {
	b := newBackend(t, &fakeGrabber{}, fakeProber{duration: time.Second})
	if err := b.Broadcast(context.Background(), ports.Notification{Event: ports.EventVideoSeek, Position: 10}); err != nil {
		t.Errorf("seek without a video returned %v", err)
	}
	if _, ok := b.Position(); ok {
		t.Error("Position reported a video")
	}
}

func TestBackend_PreviewReusesFrameWhileStill(t *testing.T) {
	g := &fakeGrabber{}
	b := newBackend(t, g, fakeProber{duration: time.Second})
	frames := subscribe(t, b)
	if err := b.OpenVideo(context.Background(), "run.mp4"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		frames.waitFor(t, "run.mp4@0s")
	}
	if g.hits() != 1 {
		t.Errorf("grabber called %d times for an unchanged position, want 1", g.hits())
	}
}

func TestBackend_OpenVideoBroadcastStopsPreview(t *testing.T) {
	b := newBackend(t, &fakeGrabber{}, fakeProber{duration: time.Second})
	ctx := context.Background()
	if err := b.OpenVideo(ctx, "run.mp4"); err != nil {
		t.Fatal(err)
	}
	if !b.Previewing() {
		t.Fatal("preview not running after OpenVideo")
	}

	if err := b.Broadcast(ctx, ports.Notification{Event: ports.EventOpenVideo}); err != nil {
		t.Fatal(err)
	}
	if b.Previewing() {
		t.Error("preview still running after open_video broadcast")
	}
	if _, ok := b.Position(); ok {
		t.Error("video still bound after open_video broadcast")
	}
}

func TestBackend_OpenVideoReplacesSource(t *testing.T) {
	b := newBackend(t, &fakeGrabber{}, fakeProber{duration: 4 * time.Second})
	frames := subscribe(t, b)
	ctx := context.Background()

	b.OpenVideo(ctx, "a.mp4")
	b.Broadcast(ctx, ports.Notification{Event: ports.EventVideoSeek, Position: 100000})
	frames.waitFor(t, "a.mp4@4s")

	if err := b.OpenVideo(ctx, "b.mp4"); err != nil {
		t.Fatal(err)
	}
	frames.waitFor(t, "b.mp4@0s")
}

// slowGrabber holds each file grab for delay.
type slowGrabber struct {
	fakeGrabber
	delay time.Duration
}

func (g *slowGrabber) FrameAt(ctx context.Context, path string, at time.Duration) ([]byte, error) {
	select {
	case <-time.After(g.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.fakeGrabber.FrameAt(ctx, path, at)
}

func TestBackend_ConcurrentOpensLeaveOnePreview(t *testing.T) {
	b := newBackend(t, &slowGrabber{delay: 30 * time.Millisecond}, fakeProber{duration: time.Second})
	ctx := context.Background()

	var emitted atomic.Int64
	b.Subscribe(func(string) { emitted.Add(1) })

	if err := b.OpenVideo(ctx, "a.mp4"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for _, path := range []string{"b.mp4", "c.mp4", "d.mp4"} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			if err := b.OpenVideo(ctx, path); err != nil {
				t.Errorf("OpenVideo(%s) failed: %v", path, err)
			}
		}(path)
	}
	wg.Wait()

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	after := emitted.Load()
	time.Sleep(150 * time.Millisecond)
	if got := emitted.Load(); got != after {
		t.Errorf("frames after Close: %d -> %d, a preview loop outlived Close", after, got)
	}
}

func TestBackend_ProbeFailure(t *testing.T) {
	errProbe := errors.New("no such file")
	b := newBackend(t, &fakeGrabber{}, fakeProber{err: errProbe})

	err := b.OpenVideo(context.Background(), "missing.mp4")
	if !errors.Is(err, errProbe) {
		t.Errorf("OpenVideo error = %v, want wrapped %v", err, errProbe)
	}
	if b.Previewing() {
		t.Error("preview started for an unprobeable file")
	}
}

func TestBackend_GrabErrorsDoNotStopLoop(t *testing.T) {
	g := &fakeGrabber{fileErr: errors.New("decode failed")}
	b := newBackend(t, g, fakeProber{duration: time.Second})
	if err := b.OpenVideo(context.Background(), "run.mp4"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for g.hits() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if g.hits() < 3 {
		t.Errorf("grabber retried %d times, want at least 3", g.hits())
	}
}

func TestBackend_LiveStream(t *testing.T) {
	b := newBackend(t, &fakeGrabber{}, fakeProber{})
	frames := subscribe(t, b)
	ctx := context.Background()

	if err := b.StartStream(ctx); err != nil {
		t.Fatalf("StartStream failed: %v", err)
	}
	if err := b.StartStream(ctx); err != nil {
		t.Errorf("second StartStream = %v, want nil", err)
	}
	frames.waitFor(t, "live:/dev/video2")

	if err := b.Broadcast(ctx, ports.Notification{Event: ports.EventStopStream}); err != nil {
		t.Fatal(err)
	}
	if b.Streaming() {
		t.Error("live loop still running after stop_stream")
	}
}

func TestBackend_RegionCommittedAndUnknownEvents(t *testing.T) {
	b := newBackend(t, &fakeGrabber{}, fakeProber{})
	ctx := context.Background()

	region := &ports.RegionPayload{X: 1, Y: 2, Width: 3, Height: 4}
	if err := b.Broadcast(ctx, ports.Notification{Event: ports.EventRegionCommitted, Region: region}); err != nil {
		t.Errorf("region_committed = %v", err)
	}
	if err := b.Broadcast(ctx, ports.Notification{Event: "rewind"}); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("unknown event = %v, want ErrUnknownEvent", err)
	}
}

func TestBackend_Close(t *testing.T) {
	b := newBackend(t, &fakeGrabber{}, fakeProber{duration: time.Second})
	ctx := context.Background()
	b.StartStream(ctx)
	b.OpenVideo(ctx, "run.mp4")

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if b.Streaming() || b.Previewing() {
		t.Error("loops survived Close")
	}
	if err := b.StartStream(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("StartStream after Close = %v", err)
	}
	if err := b.OpenVideo(ctx, "run.mp4"); !errors.Is(err, ErrClosed) {
		t.Errorf("OpenVideo after Close = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestPositionToTime(t *testing.T) {
	tests := []struct {
		pos  int
		d    time.Duration
		want time.Duration
	}{
		{0, time.Minute, 0},
		{100000, time.Minute, time.Minute},
		{50000, 10 * time.Second, 5 * time.Second},
		{49990, 100 * time.Second, 49990 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := positionToTime(tt.pos, tt.d); got != tt.want {
			t.Errorf("positionToTime(%d, %v) = %v, want %v", tt.pos, tt.d, got, tt.want)
		}
	}
}

func TestFindFFmpeg_CustomPath(t *testing.T) {
	if _, err := findFFmpeg("/nonexistent/ffmpeg"); !errors.Is(err, ErrFFmpegNotFound) {
		t.Errorf("findFFmpeg = %v, want ErrFFmpegNotFound", err)
	}
}
