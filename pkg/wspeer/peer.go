// Package wspeer wraps a websocket connection with a single writer goroutine
// and two outgoing queues: a reliable one for replies and a lossy one for
// state pushes that may be superseded.
package wspeer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/user/scoresplit/pkg/ports"
)

const (
	// DefaultSendBuffer is the lossy queue length.
	DefaultSendBuffer = 16

	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// ErrClosed is returned when sending to a closed peer.
var ErrClosed = errors.New("wspeer: closed")

// Peer is one websocket connection.
type Peer struct {
	ID string

	conn    *websocket.Conn
	logger  ports.Logger
	control chan []byte
	lossy   chan []byte
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

// New wraps conn and starts its write loop. bufSize bounds the lossy queue;
// zero means DefaultSendBuffer.
func New(conn *websocket.Conn, bufSize int, logger ports.Logger) *Peer {
	if bufSize <= 0 {
		bufSize = DefaultSendBuffer
	}
	id := uuid.New().String()
	p := &Peer{
		ID:      id,
		conn:    conn,
		logger:  logger.WithComponent("peer " + id[:8]),
		control: make(chan []byte, bufSize),
		lossy:   make(chan []byte, bufSize),
		done:    make(chan struct{}),
	}
	go p.writeLoop()
	return p
}

// Send queues data for delivery. It blocks while the reliable queue is full.
func (p *Peer) Send(ctx context.Context, data []byte) error {
	select {
	case p.control <- data:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Offer queues data without blocking. When the lossy queue is full the
// oldest entry is discarded; Offer reports whether that happened.
func (p *Peer) Offer(data []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.lossy <- data:
		return false
	default:
	}
	dropped := false
	select {
	case <-p.lossy:
		dropped = true
		p.dropped.Add(1)
	default:
	}
	select {
	case p.lossy <- data:
	default:
	}
	return dropped
}

// Dropped returns how many queued messages Offer discarded.
func (p *Peer) Dropped() uint64 {
	return p.dropped.Load()
}

// ReadLoop calls handle for every text message until the connection fails
// or the peer is closed. The peer is closed when ReadLoop returns.
func (p *Peer) ReadLoop(handle func(data []byte)) error {
	defer p.Close()

	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			select {
			case <-p.done:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		handle(data)
	}
}

// Done is closed once the peer is closed.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Close asks the write loop to send a close frame and drop the connection.
// It is safe to call more than once.
func (p *Peer) Close() {
	p.once.Do(func() { close(p.done) })
}

func (p *Peer) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.Close()
		p.conn.Close()
	}()

	for {
		// Replies go out before pending state pushes.
		select {
		case data := <-p.control:
			if !p.write(websocket.TextMessage, data) {
				return
			}
			continue
		default:
		}

		select {
		case data := <-p.control:
			if !p.write(websocket.TextMessage, data) {
				return
			}
		case data := <-p.lossy:
			if !p.write(websocket.TextMessage, data) {
				return
			}
		case <-ticker.C:
			if !p.write(websocket.PingMessage, nil) {
				return
			}
		case <-p.done:
			p.conn.SetWriteDeadline(time.Now().Add(time.Second))
			p.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (p *Peer) write(messageType int, data []byte) bool {
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := p.conn.WriteMessage(messageType, data); err != nil {
		select {
		case <-p.done:
		default:
			p.logger.Warn("Write failed: %s", err)
		}
		return false
	}
	return true
}
