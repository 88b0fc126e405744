// Package wsbackend carries the backend contract over a websocket.
//
// Client implements ports.Backend by sending each command as an envelope
// and waiting for the matching ack. Handler hosts any ports.Backend for
// remote clients. Frame updates travel host to client on a lossy queue.
package wsbackend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/user/scoresplit/pkg/ports"
	"github.com/user/scoresplit/pkg/protocol"
	"github.com/user/scoresplit/pkg/wspeer"
)

const defaultAckTimeout = 5 * time.Second

var (
	// ErrAckTimeout is returned when the host does not acknowledge a command in time.
	ErrAckTimeout = errors.New("wsbackend: ack timeout")

	// ErrDisconnected is returned when the connection to the host is gone.
	ErrDisconnected = errors.New("wsbackend: disconnected")

	// ErrRejected wraps the error text of a negative ack.
	ErrRejected = errors.New("wsbackend: command rejected")
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// AckTimeout bounds the wait for each ack.
	AckTimeout time.Duration
	// SendBuffer bounds the outgoing queue.
	SendBuffer int
}

// Client is a ports.Backend backed by a remote Handler.
type Client struct {
	peer    *wspeer.Peer
	opts    ClientOptions
	logger  ports.Logger
	stopped chan struct{}

	mu       sync.Mutex
	pending  map[string]chan protocol.AckPayload
	handlers map[int]ports.FrameHandler
	nextID   int
	frames   uint64
}

// Dial connects to the backend host at url (ws:// or wss://).
func Dial(ctx context.Context, url string, opts ClientOptions, logger ports.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial backend %s: %w", url, err)
	}
	return NewClient(conn, opts, logger), nil
}

// NewClient wraps an established connection.
func NewClient(conn *websocket.Conn, opts ClientOptions, logger ports.Logger) *Client {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = defaultAckTimeout
	}
	logger = logger.WithComponent("remote")
	c := &Client{
		peer:     wspeer.New(conn, opts.SendBuffer, logger),
		opts:     opts,
		logger:   logger,
		stopped:  make(chan struct{}),
		pending:  make(map[string]chan protocol.AckPayload),
		handlers: make(map[int]ports.FrameHandler),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer close(c.stopped)
	if err := c.peer.ReadLoop(c.handle); err != nil {
		c.logger.Warn("Backend connection lost: %s", err)
	}
}

func (c *Client) handle(data []byte) {
	env, err := protocol.Unmarshal(data)
	if err != nil {
		c.logger.Warn("Invalid message from backend: %s", err)
		return
	}

	switch env.Type {
	case protocol.MsgAck:
		ack, err := protocol.UnmarshalPayload[protocol.AckPayload](env.Payload)
		if err != nil {
			c.logger.Warn("Invalid message from backend: %s", err)
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[env.RequestID]
		delete(c.pending, env.RequestID)
		c.mu.Unlock()
		if ok {
			ch <- ack
		}

	case protocol.MsgFrameUpdate:
		p, err := protocol.UnmarshalPayload[protocol.FrameUpdatePayload](env.Payload)
		if err != nil {
			c.logger.Warn("Invalid message from backend: %s", err)
			return
		}
		c.mu.Lock()
		c.frames++
		handlers := make([]ports.FrameHandler, 0, len(c.handlers))
		for _, h := range c.handlers {
			handlers = append(handlers, h)
		}
		c.mu.Unlock()
		for _, h := range handlers {
			h(p.Frame)
		}

	default:
		c.logger.Debug("Ignoring %s from backend", env.Type)
	}
}

// StartStream implements ports.CommandDispatcher.
func (c *Client) StartStream(ctx context.Context) error {
	return c.call(ctx, protocol.MsgStartStream, nil)
}

// OpenVideo implements ports.CommandDispatcher.
func (c *Client) OpenVideo(ctx context.Context, path string) error {
	return c.call(ctx, protocol.MsgOpenVideo, protocol.OpenVideoPayload{Path: path})
}

// Broadcast implements ports.CommandDispatcher.
func (c *Client) Broadcast(ctx context.Context, n ports.Notification) error {
	return c.call(ctx, protocol.MsgBroadcast, encodeNotification(n))
}

// Subscribe implements ports.FrameSource.
func (c *Client) Subscribe(handler ports.FrameHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = handler
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
	}
}

// Close drops the connection and fails outstanding commands.
func (c *Client) Close() error {
	c.peer.Close()
	<-c.stopped
	return nil
}

// Frames returns how many frame updates have arrived.
func (c *Client) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

func (c *Client) call(ctx context.Context, msgType protocol.MessageType, payload interface{}) error {
	id := uuid.NewString()
	data, err := protocol.MarshalRequest(msgType, id, payload)
	if err != nil {
		return err
	}

	ch := make(chan protocol.AckPayload, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.peer.Send(ctx, data); err != nil {
		if errors.Is(err, wspeer.ErrClosed) {
			return fmt.Errorf("send %s: %w", msgType, ErrDisconnected)
		}
		return fmt.Errorf("send %s: %w", msgType, err)
	}

	timer := time.NewTimer(c.opts.AckTimeout)
	defer timer.Stop()

	select {
	case ack := <-ch:
		if !ack.OK {
			return fmt.Errorf("%w: %s", ErrRejected, ack.Error)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w", msgType, ErrAckTimeout)
	case <-c.peer.Done():
		return fmt.Errorf("%s: %w", msgType, ErrDisconnected)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func encodeNotification(n ports.Notification) protocol.BroadcastPayload {
	p := protocol.BroadcastPayload{Event: string(n.Event), Position: n.Position}
	if n.Region != nil {
		p.Region = &protocol.RegionPayload{
			X:      n.Region.X,
			Y:      n.Region.Y,
			Width:  n.Region.Width,
			Height: n.Region.Height,
		}
	}
	return p
}

func decodeNotification(p protocol.BroadcastPayload) ports.Notification {
	n := ports.Notification{Event: ports.Event(p.Event), Position: p.Position}
	if p.Region != nil {
		n.Region = &ports.RegionPayload{
			X:      p.Region.X,
			Y:      p.Region.Y,
			Width:  p.Region.Width,
			Height: p.Region.Height,
		}
	}
	return n
}

// Ensure Client implements ports.Backend
var _ ports.Backend = (*Client)(nil)
