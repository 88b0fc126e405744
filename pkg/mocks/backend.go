// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/scoresplit/pkg/ports"
)

// Backend is a mock implementation of ports.Backend.
// It records every command and broadcast in dispatch order.
type Backend struct {
	StartStreamFunc func(ctx context.Context) error
	OpenVideoFunc   func(ctx context.Context, path string) error
	BroadcastFunc   func(ctx context.Context, n ports.Notification) error
	CloseFunc       func() error

	mu            sync.Mutex
	calls         []string
	notifications []ports.Notification
	handlers      map[int]ports.FrameHandler
	nextID        int
	subscribes    int
}

// NewBackend creates a new mock Backend.
func NewBackend() *Backend {
	return &Backend{handlers: make(map[int]ports.FrameHandler)}
}

func (m *Backend) StartStream(ctx context.Context) error {
	m.record("start_stream")
	if m.StartStreamFunc != nil {
		return m.StartStreamFunc(ctx)
	}
	return nil
}

func (m *Backend) OpenVideo(ctx context.Context, path string) error {
	m.record("open_video:" + path)
	if m.OpenVideoFunc != nil {
		return m.OpenVideoFunc(ctx, path)
	}
	return nil
}

func (m *Backend) Broadcast(ctx context.Context, n ports.Notification) error {
	m.mu.Lock()
	m.notifications = append(m.notifications, n)
	m.mu.Unlock()

	switch n.Event {
	case ports.EventVideoSeek:
		m.record(fmt.Sprintf("broadcast:%s:%d", n.Event, n.Position))
	default:
		m.record("broadcast:" + string(n.Event))
	}
	if m.BroadcastFunc != nil {
		return m.BroadcastFunc(ctx, n)
	}
	return nil
}

func (m *Backend) Subscribe(handler ports.FrameHandler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers == nil {
		m.handlers = make(map[int]ports.FrameHandler)
	}
	id := m.nextID
	m.nextID++
	m.handlers[id] = handler
	m.subscribes++
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.handlers, id)
	}
}

func (m *Backend) Close() error {
	m.record("close")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Emit delivers a frame payload to every subscriber.
func (m *Backend) Emit(payload string) {
	m.mu.Lock()
	handlers := make([]ports.FrameHandler, 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

// Calls returns the recorded calls in order.
func (m *Backend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Notifications returns the recorded broadcasts in order.
func (m *Backend) Notifications() []ports.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}

// Subscribers returns the number of active frame subscriptions.
func (m *Backend) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

// SubscribeCount returns how many times Subscribe was called.
func (m *Backend) SubscribeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribes
}

// Reset clears the recorded calls.
func (m *Backend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.notifications = nil
}

func (m *Backend) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Ensure Backend implements ports.Backend
var _ ports.Backend = (*Backend)(nil)

// FilePicker is a mock implementation of ports.FilePicker.
type FilePicker struct {
	Path      string
	Cancelled bool
	Err       error
	PickFunc  func(ctx context.Context) (string, bool, error)
}

// PickPath returns a picker that selects path.
func PickPath(path string) *FilePicker {
	return &FilePicker{Path: path}
}

// CancelPick returns a picker whose dialog is dismissed.
func CancelPick() *FilePicker {
	return &FilePicker{Cancelled: true}
}

func (m *FilePicker) Pick(ctx context.Context) (string, bool, error) {
	if m.PickFunc != nil {
		return m.PickFunc(ctx)
	}
	if m.Err != nil {
		return "", false, m.Err
	}
	if m.Cancelled {
		return "", false, nil
	}
	return m.Path, true, nil
}

// Ensure FilePicker implements ports.FilePicker
var _ ports.FilePicker = (*FilePicker)(nil)
