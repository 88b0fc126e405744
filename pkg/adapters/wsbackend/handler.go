package wsbackend

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/scoresplit/pkg/ports"
	"github.com/user/scoresplit/pkg/protocol"
	"github.com/user/scoresplit/pkg/wspeer"
)

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	// CommandTimeout bounds each command run against the hosted backend.
	CommandTimeout time.Duration
	// SendBuffer bounds the frame queue of each client.
	SendBuffer int
}

// Handler serves a ports.Backend to websocket clients.
//
// When the last client leaves, the live stream is stopped and the open
// video released.
type Handler struct {
	backend  ports.Backend
	opts     HandlerOptions
	logger   ports.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients int
}

// NewHandler creates a Handler for backend.
func NewHandler(backend ports.Backend, opts HandlerOptions, logger ports.Logger) *Handler {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 30 * time.Second
	}
	return &Handler{
		backend:  backend,
		opts:     opts,
		logger:   logger.WithComponent("host"),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// Clients returns the number of connected clients.
func (h *Handler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed: %s", err)
		return
	}

	peer := wspeer.New(conn, h.opts.SendBuffer, h.logger)
	h.join()
	h.logger.Info("Client %s connected from %s", peer.ID, conn.RemoteAddr())
	defer func() {
		h.leave()
		h.logger.Info("Client %s disconnected", peer.ID)
	}()

	unsubscribe := h.backend.Subscribe(func(payload string) {
		data, err := protocol.Marshal(protocol.MsgFrameUpdate, protocol.FrameUpdatePayload{Frame: payload})
		if err != nil {
			return
		}
		peer.Offer(data)
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-peer.Done()
		cancel()
	}()

	err = peer.ReadLoop(func(data []byte) {
		h.handle(ctx, peer, data)
	})
	if err != nil {
		h.logger.Debug("Client %s read failed: %s", peer.ID, err)
	}
}

func (h *Handler) handle(ctx context.Context, peer *wspeer.Peer, data []byte) {
	env, err := protocol.Unmarshal(data)
	if err != nil {
		h.logger.Warn("Invalid message from client %s: %s", peer.ID, err)
		h.ack(ctx, peer, protocol.Envelope{}, err)
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, h.opts.CommandTimeout)
	defer cancel()
	err = h.dispatch(cmdCtx, env)
	if err != nil {
		h.logger.Warn("Action %s failed: %s", env.Type, err)
	}
	h.ack(ctx, peer, env, err)
}

func (h *Handler) dispatch(ctx context.Context, env protocol.Envelope) error {
	switch env.Type {
	case protocol.MsgStartStream:
		return h.backend.StartStream(ctx)

	case protocol.MsgOpenVideo:
		p, err := protocol.UnmarshalPayload[protocol.OpenVideoPayload](env.Payload)
		if err != nil {
			return err
		}
		return h.backend.OpenVideo(ctx, p.Path)

	case protocol.MsgBroadcast:
		p, err := protocol.UnmarshalPayload[protocol.BroadcastPayload](env.Payload)
		if err != nil {
			return err
		}
		return h.backend.Broadcast(ctx, decodeNotification(p))

	default:
		return fmt.Errorf("wsbackend: unknown message type %q", env.Type)
	}
}

func (h *Handler) ack(ctx context.Context, peer *wspeer.Peer, env protocol.Envelope, err error) {
	ack := protocol.AckPayload{AckedType: env.Type, OK: err == nil}
	if err != nil {
		ack.Error = err.Error()
	}
	data, merr := protocol.MarshalRequest(protocol.MsgAck, env.RequestID, ack)
	if merr != nil {
		h.logger.Warn("Failed to encode result: %s", merr)
		return
	}
	if serr := peer.Send(ctx, data); serr != nil {
		h.logger.Debug("Client %s gone before result: %s", peer.ID, serr)
	}
}

func (h *Handler) join() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients++
}

func (h *Handler) leave() {
	h.mu.Lock()
	h.clients--
	last := h.clients == 0
	h.mu.Unlock()
	if !last {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.opts.CommandTimeout)
	defer cancel()
	for _, ev := range []ports.Event{ports.EventStopStream, ports.EventOpenVideo} {
		if err := h.backend.Broadcast(ctx, ports.Notification{Event: ev}); err != nil {
			h.logger.Warn("Action %s failed: %s", ev, err)
		}
	}
}
