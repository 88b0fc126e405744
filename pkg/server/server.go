// Package server exposes the synchronizer to a browser UI over a websocket.
//
// Clients send commands as protocol envelopes and receive a result for each
// one, plus a view push after every state change. Views are pushed through a
// lossy queue, so a slow client skips views instead of stalling the loop.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/user/scoresplit/pkg/coords"
	"github.com/user/scoresplit/pkg/ports"
	"github.com/user/scoresplit/pkg/protocol"
	"github.com/user/scoresplit/pkg/synchronizer"
	"github.com/user/scoresplit/pkg/wspeer"
)

const (
	defaultCommandTimeout = 10 * time.Second
	shutdownTimeout       = 5 * time.Second
)

// ErrUnknownMessage is reported for envelopes of an unsupported type.
var ErrUnknownMessage = errors.New("server: unknown message type")

// Actions is the command surface of the synchronizer.
type Actions interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Open(ctx context.Context, picker ports.FilePicker) error
	SliderChanged(ctx context.Context, value int) error
	Wheel(ctx context.Context, deltaY float64) error
	DragEnd(ctx context.Context, p coords.Point) error
	TransformEnd(ctx context.Context, p coords.Point, scaleX, scaleY float64) error
	SetDisplaySize(ctx context.Context, width, height int) error
	AddSplit(ctx context.Context, topLeft coords.Point, width, height float64) error
	ResetSplits(ctx context.Context, drop bool) error
	Current(ctx context.Context) (synchronizer.View, error)
}

// PickerFactory turns the path sent by the UI into a FilePicker.
type PickerFactory func(path string) ports.FilePicker

// Config configures the server.
type Config struct {
	Addr           string
	SendBuffer     int
	CommandTimeout time.Duration
	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string
}

// Server is the UI websocket server. It implements synchronizer.Presenter.
type Server struct {
	cfg      Config
	actions  Actions
	pickers  PickerFactory
	logger   ports.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*wspeer.Peer
}

// New creates a server. Call SetActions before serving if actions is nil at
// construction time, which happens when the server is also the presenter.
func New(cfg Config, actions Actions, pickers PickerFactory, logger ports.Logger) *Server {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	s := &Server{
		cfg:     cfg,
		actions: actions,
		pickers: pickers,
		logger:  logger.WithComponent("server"),
		clients: make(map[string]*wspeer.Peer),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// SetActions sets the command target.
func (s *Server) SetActions(actions Actions) {
	s.actions = actions
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range s.cfg.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// Handler returns the HTTP handler serving /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Run serves on cfg.Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.closeClients()
	}()

	s.logger.Info("Listening on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Present pushes v to every connected client.
func (s *Server) Present(v synchronizer.View) {
	data, err := protocol.Marshal(protocol.MsgView, v)
	if err != nil {
		s.logger.Warn("Failed to encode view: %s", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.Offer(data) {
			s.logger.Debug("Dropped view for slow client %s", c.ID)
		}
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		c.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body, _ := sonic.Marshal(map[string]interface{}{
		"status":  "ok",
		"clients": s.Clients(),
	})
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed: %s", err)
		return
	}

	peer := wspeer.New(conn, s.cfg.SendBuffer, s.logger)
	s.mu.Lock()
	s.clients[peer.ID] = peer
	s.mu.Unlock()
	s.logger.Info("Client %s connected from %s", peer.ID, conn.RemoteAddr())

	defer func() {
		s.mu.Lock()
		delete(s.clients, peer.ID)
		s.mu.Unlock()
		s.logger.Info("Client %s disconnected", peer.ID)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-peer.Done()
		cancel()
	}()

	// A new client starts from a fully rendered view.
	if s.actions != nil {
		viewCtx, viewCancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
		v, err := s.actions.Current(viewCtx)
		viewCancel()
		if err == nil {
			if data, err := protocol.Marshal(protocol.MsgView, v); err == nil {
				peer.Offer(data)
			}
		}
	}

	err = peer.ReadLoop(func(data []byte) {
		s.handleMessage(ctx, peer, data)
	})
	if err != nil {
		s.logger.Debug("Client %s read failed: %s", peer.ID, err)
	}
}

func (s *Server) handleMessage(ctx context.Context, peer *wspeer.Peer, data []byte) {
	env, err := protocol.Unmarshal(data)
	if err != nil {
		s.logger.Warn("Invalid message from client %s: %s", peer.ID, err)
		s.reply(ctx, peer, protocol.Envelope{}, err)
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()
	s.reply(ctx, peer, env, s.dispatch(cmdCtx, env))
}

func (s *Server) dispatch(ctx context.Context, env protocol.Envelope) error {
	if s.actions == nil {
		return errors.New("server: not ready")
	}

	switch env.Type {
	case protocol.MsgStart:
		return s.actions.Start(ctx)

	case protocol.MsgStop:
		return s.actions.Stop(ctx)

	case protocol.MsgOpen:
		p, err := protocol.UnmarshalPayload[protocol.OpenPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.actions.Open(ctx, s.pickers(p.Path))

	case protocol.MsgSeek:
		p, err := protocol.UnmarshalPayload[protocol.SeekPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.actions.SliderChanged(ctx, p.Value)

	case protocol.MsgWheel:
		p, err := protocol.UnmarshalPayload[protocol.WheelPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.actions.Wheel(ctx, p.DeltaY)

	case protocol.MsgDragEnd:
		p, err := protocol.UnmarshalPayload[protocol.DragEndPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.actions.DragEnd(ctx, coords.Point{X: p.X, Y: p.Y})

	case protocol.MsgTransformEnd:
		p, err := protocol.UnmarshalPayload[protocol.TransformEndPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.actions.TransformEnd(ctx, coords.Point{X: p.X, Y: p.Y}, p.ScaleX, p.ScaleY)

	case protocol.MsgDisplaySize:
		p, err := protocol.UnmarshalPayload[protocol.DisplaySizePayload](env.Payload)
		if err != nil {
			return err
		}
		return s.actions.SetDisplaySize(ctx, p.Width, p.Height)

	case protocol.MsgAddSplit:
		p, err := protocol.UnmarshalPayload[protocol.AddSplitPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.actions.AddSplit(ctx, coords.Point{X: p.X, Y: p.Y}, p.Width, p.Height)

	case protocol.MsgResetSplits:
		p, err := protocol.UnmarshalPayload[protocol.ResetSplitsPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.actions.ResetSplits(ctx, p.Clear)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
}

func (s *Server) reply(ctx context.Context, peer *wspeer.Peer, env protocol.Envelope, err error) {
	result := protocol.ResultPayload{AckedType: env.Type, OK: err == nil}
	if err != nil {
		result.Error = err.Error()
	}
	data, merr := protocol.MarshalRequest(protocol.MsgResult, env.RequestID, result)
	if merr != nil {
		s.logger.Warn("Failed to encode result: %s", merr)
		return
	}
	if serr := peer.Send(ctx, data); serr != nil {
		s.logger.Debug("Client %s gone before result: %s", peer.ID, serr)
	}
}

// Ensure Server implements synchronizer.Presenter
var _ synchronizer.Presenter = (*Server)(nil)
