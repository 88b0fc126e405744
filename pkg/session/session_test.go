package session

import (
	"context"
	"errors"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/user/scoresplit/pkg/adapters/logger"
	"github.com/user/scoresplit/pkg/mocks"
	"github.com/user/scoresplit/pkg/ports"
)

var errBackendDown = errors.New("backend down")

func TestSessionStart(t *testing.T) {
	convey.Convey("Given an idle session", t, func() {
		ctx := context.Background()
		backend := mocks.NewBackend()
		s := New(backend, logger.NewNoop())

		convey.So(s.State(), convey.ShouldEqual, StateIdle)

		convey.Convey("Start dispatches start_stream and enters streaming", func() {
			err := s.Start(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(s.State(), convey.ShouldEqual, StateStreaming)
			convey.So(backend.Calls(), convey.ShouldResemble, []string{"start_stream"})

			convey.Convey("A second Start is rejected without dispatching", func() {
				err := s.Start(ctx)
				convey.So(errors.Is(err, ErrAlreadyStreaming), convey.ShouldBeTrue)
				convey.So(backend.Calls(), convey.ShouldResemble, []string{"start_stream"})
			})

			convey.Convey("Stop broadcasts stop_stream and returns to idle", func() {
				err := s.Stop(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(s.State(), convey.ShouldEqual, StateIdle)
				convey.So(backend.Calls(), convey.ShouldResemble, []string{"start_stream", "broadcast:stop_stream"})
			})
		})

		convey.Convey("Start reports a dispatch failure and stays idle", func() {
			backend.StartStreamFunc = func(ctx context.Context) error { return errBackendDown }
			err := s.Start(ctx)
			convey.So(errors.Is(err, errBackendDown), convey.ShouldBeTrue)
			convey.So(s.State(), convey.ShouldEqual, StateIdle)
		})

		convey.Convey("Stop while idle is rejected", func() {
			err := s.Stop(ctx)
			convey.So(errors.Is(err, ErrNotStreaming), convey.ShouldBeTrue)
			convey.So(backend.Calls(), convey.ShouldBeEmpty)
		})
	})
}

func TestSessionStopFailure(t *testing.T) {
	convey.Convey("Given a streaming session whose backend rejects broadcasts", t, func() {
		ctx := context.Background()
		backend := mocks.NewBackend()
		s := New(backend, logger.NewNoop())
		convey.So(s.Start(ctx), convey.ShouldBeNil)
		backend.BroadcastFunc = func(ctx context.Context, n ports.Notification) error { return errBackendDown }

		convey.Convey("Stop reports the failure and keeps streaming", func() {
			err := s.Stop(ctx)
			convey.So(errors.Is(err, errBackendDown), convey.ShouldBeTrue)
			convey.So(s.State(), convey.ShouldEqual, StateStreaming)
		})
	})
}

func TestSessionOpen(t *testing.T) {
	convey.Convey("Given a session", t, func() {
		ctx := context.Background()
		backend := mocks.NewBackend()
		s := New(backend, logger.NewNoop())

		convey.Convey("A cancelled selection dispatches nothing", func() {
			err := s.Open(ctx, mocks.CancelPick())
			convey.So(err, convey.ShouldBeNil)
			convey.So(backend.Calls(), convey.ShouldBeEmpty)
			_, ok := s.Source()
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("A picker error dispatches nothing", func() {
			err := s.Open(ctx, &mocks.FilePicker{Err: errBackendDown})
			convey.So(errors.Is(err, errBackendDown), convey.ShouldBeTrue)
			convey.So(backend.Calls(), convey.ShouldBeEmpty)
		})

		convey.Convey("Opening while streaming announces before opening", func() {
			convey.So(s.Start(ctx), convey.ShouldBeNil)
			backend.Reset()

			var stateDuringOpen State
			backend.OpenVideoFunc = func(ctx context.Context, path string) error {
				stateDuringOpen = s.State()
				return nil
			}

			err := s.Open(ctx, mocks.PickPath("/videos/run.mp4"))
			convey.So(err, convey.ShouldBeNil)
			convey.So(backend.Calls(), convey.ShouldResemble, []string{
				"broadcast:open_video",
				"open_video:/videos/run.mp4",
			})
			convey.So(stateDuringOpen, convey.ShouldEqual, StateOpening)
			convey.So(s.State(), convey.ShouldEqual, StateStreaming)

			src, ok := s.Source()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(src.Path, convey.ShouldEqual, "/videos/run.mp4")
		})

		convey.Convey("A new source replaces the previous one", func() {
			convey.So(s.Open(ctx, mocks.PickPath("a.mp4")), convey.ShouldBeNil)
			convey.So(s.Open(ctx, mocks.PickPath("b.mp4")), convey.ShouldBeNil)
			src, _ := s.Source()
			convey.So(src.Path, convey.ShouldEqual, "b.mp4")
			convey.So(s.State(), convey.ShouldEqual, StateIdle)
		})

		convey.Convey("A failed open clears the released source and restores the state", func() {
			convey.So(s.Open(ctx, mocks.PickPath("a.mp4")), convey.ShouldBeNil)
			backend.OpenVideoFunc = func(ctx context.Context, path string) error { return errBackendDown }

			err := s.Open(ctx, mocks.PickPath("broken.mp4"))
			convey.So(errors.Is(err, errBackendDown), convey.ShouldBeTrue)
			_, ok := s.Source()
			convey.So(ok, convey.ShouldBeFalse)
			convey.So(s.State(), convey.ShouldEqual, StateIdle)
		})

		convey.Convey("A failed announcement does not dispatch the open command", func() {
			backend.BroadcastFunc = func(ctx context.Context, n ports.Notification) error { return errBackendDown }
			err := s.Open(ctx, mocks.PickPath("a.mp4"))
			convey.So(errors.Is(err, errBackendDown), convey.ShouldBeTrue)
			convey.So(backend.Calls(), convey.ShouldResemble, []string{"broadcast:open_video"})
		})
	})
}

func TestSessionSeekAndRegion(t *testing.T) {
	convey.Convey("Given a session", t, func() {
		ctx := context.Background()
		backend := mocks.NewBackend()
		s := New(backend, logger.NewNoop())

		convey.Convey("Seek broadcasts the position and records it", func() {
			convey.So(s.Seek(ctx, 49990), convey.ShouldBeNil)
			convey.So(s.LastSeek(), convey.ShouldEqual, 49990)
			convey.So(backend.Calls(), convey.ShouldResemble, []string{"broadcast:video_seek:49990"})
		})

		convey.Convey("A failed seek keeps the last delivered position", func() {
			convey.So(s.Seek(ctx, 10), convey.ShouldBeNil)
			backend.BroadcastFunc = func(ctx context.Context, n ports.Notification) error { return errBackendDown }
			convey.So(s.Seek(ctx, 20), convey.ShouldNotBeNil)
			convey.So(s.LastSeek(), convey.ShouldEqual, 10)
		})

		convey.Convey("CommitRegion broadcasts the region", func() {
			region := &ports.RegionPayload{X: 20, Y: 30, Width: 100, Height: 100}
			convey.So(s.CommitRegion(ctx, region), convey.ShouldBeNil)
			n := backend.Notifications()
			convey.So(len(n), convey.ShouldEqual, 1)
			convey.So(n[0].Event, convey.ShouldEqual, ports.EventRegionCommitted)
			convey.So(*n[0].Region, convey.ShouldResemble, *region)
		})
	})
}

func TestSessionClose(t *testing.T) {
	convey.Convey("Given a streaming session", t, func() {
		ctx := context.Background()
		backend := mocks.NewBackend()
		s := New(backend, logger.NewNoop())
		convey.So(s.Start(ctx), convey.ShouldBeNil)

		convey.Convey("Close stops the stream and is terminal", func() {
			convey.So(s.Close(ctx), convey.ShouldBeNil)
			convey.So(s.State(), convey.ShouldEqual, StateStopped)
			convey.So(backend.Calls(), convey.ShouldResemble, []string{"start_stream", "broadcast:stop_stream"})

			convey.So(s.Close(ctx), convey.ShouldBeNil)
			convey.So(errors.Is(s.Start(ctx), ErrClosed), convey.ShouldBeTrue)
			convey.So(errors.Is(s.Stop(ctx), ErrClosed), convey.ShouldBeTrue)
			convey.So(errors.Is(s.Open(ctx, mocks.PickPath("x.mp4")), ErrClosed), convey.ShouldBeTrue)
			convey.So(errors.Is(s.Seek(ctx, 1), ErrClosed), convey.ShouldBeTrue)
			convey.So(s.Snapshot().State, convey.ShouldEqual, "stopped")
		})
	})
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateIdle:      "idle",
		StateOpening:   "opening",
		StateStreaming: "streaming",
		StateStopped:   "stopped",
		State(42):      "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
