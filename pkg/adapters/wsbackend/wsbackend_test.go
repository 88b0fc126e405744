package wsbackend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/scoresplit/pkg/adapters/logger"
	"github.com/user/scoresplit/pkg/mocks"
	"github.com/user/scoresplit/pkg/ports"
)

func wsURL(url string) string {
	return "ws" + strings.TrimPrefix(url, "http")
}

func host(t *testing.T, backend ports.Backend) (*Handler, string) {
	t.Helper()
	h := NewHandler(backend, HandlerOptions{CommandTimeout: time.Second}, logger.NewNoop())
	hs := httptest.NewServer(h)
	t.Cleanup(hs.Close)
	return h, wsURL(hs.URL)
}

func dial(t *testing.T, url string, opts ClientOptions) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, url, opts, logger.NewNoop())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClient_CommandsReachBackend(t *testing.T) {
	backend := mocks.NewBackend()
	_, url := host(t, backend)
	c := dial(t, url, ClientOptions{})
	ctx := context.Background()

	if err := c.StartStream(ctx); err != nil {
		t.Fatalf("StartStream failed: %v", err)
	}
	if err := c.OpenVideo(ctx, "/videos/run.mp4"); err != nil {
		t.Fatalf("OpenVideo failed: %v", err)
	}
	if err := c.Broadcast(ctx, ports.Notification{Event: ports.EventVideoSeek, Position: 49990}); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	region := &ports.RegionPayload{X: 10, Y: 20, Width: 300, Height: 40}
	if err := c.Broadcast(ctx, ports.Notification{Event: ports.EventRegionCommitted, Region: region}); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"start_stream",
		"open_video:/videos/run.mp4",
		"broadcast:video_seek:49990",
		"broadcast:region_committed",
	}
	got := backend.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}

	notes := backend.Notifications()
	last := notes[len(notes)-1]
	if last.Region == nil || *last.Region != *region {
		t.Errorf("region = %+v, want %+v", last.Region, region)
	}
}

func TestClient_RejectedCommand(t *testing.T) {
	backend := mocks.NewBackend()
	backend.OpenVideoFunc = func(ctx context.Context, path string) error {
		return errors.New("probe video: no such file")
	}
	_, url := host(t, backend)
	c := dial(t, url, ClientOptions{})

	err := c.OpenVideo(context.Background(), "/missing.mp4")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("error = %v, want ErrRejected", err)
	}
	if !strings.Contains(err.Error(), "no such file") {
		t.Errorf("error %q lost the host's reason", err)
	}
}

func TestClient_FrameUpdates(t *testing.T) {
	backend := mocks.NewBackend()
	_, url := host(t, backend)
	c := dial(t, url, ClientOptions{})

	frames := make(chan string, 8)
	unsubscribe := c.Subscribe(func(payload string) { frames <- payload })
	defer unsubscribe()

	eventually(t, "host subscription", func() bool { return backend.Subscribers() == 1 })
	backend.Emit("AAAA")

	select {
	case got := <-frames:
		if got != "AAAA" {
			t.Errorf("frame = %q, want AAAA", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame never arrived")
	}
	if c.Frames() != 1 {
		t.Errorf("Frames = %d, want 1", c.Frames())
	}
}

func TestClient_AckTimeout(t *testing.T) {
	upgrader := websocket.Upgrader{}
	silent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer silent.Close()

	c := dial(t, wsURL(silent.URL), ClientOptions{AckTimeout: 50 * time.Millisecond})
	if err := c.StartStream(context.Background()); !errors.Is(err, ErrAckTimeout) {
		t.Errorf("error = %v, want ErrAckTimeout", err)
	}
}

func TestClient_Disconnected(t *testing.T) {
	backend := mocks.NewBackend()
	_, url := host(t, backend)
	c := dial(t, url, ClientOptions{})

	c.Close()
	if err := c.StartStream(context.Background()); !errors.Is(err, ErrDisconnected) {
		t.Errorf("error after Close = %v, want ErrDisconnected", err)
	}
}

func TestHandler_ReleasesBackendWhenLastClientLeaves(t *testing.T) {
	backend := mocks.NewBackend()
	h, url := host(t, backend)

	a := dial(t, url, ClientOptions{})
	b := dial(t, url, ClientOptions{})
	eventually(t, "two clients", func() bool { return h.Clients() == 2 })

	if err := a.StartStream(context.Background()); err != nil {
		t.Fatal(err)
	}
	a.Close()
	eventually(t, "one client", func() bool { return h.Clients() == 1 })
	for _, call := range backend.Calls() {
		if strings.HasPrefix(call, "broadcast:") {
			t.Fatalf("backend released while a client remains: %v", backend.Calls())
		}
	}

	b.Close()
	eventually(t, "release broadcasts", func() bool { return len(backend.Calls()) == 3 })
	got := backend.Calls()
	if got[1] != "broadcast:stop_stream" || got[2] != "broadcast:open_video" {
		t.Errorf("calls = %v, want stop_stream then open_video", got)
	}
}

func TestHandler_UnknownMessage(t *testing.T) {
	backend := mocks.NewBackend()
	_, url := host(t, backend)
	c := dial(t, url, ClientOptions{})

	err := c.call(context.Background(), "rewind", nil)
	if !errors.Is(err, ErrRejected) || !strings.Contains(err.Error(), "unknown message type") {
		t.Errorf("error = %v, want rejection for unknown type", err)
	}
}
