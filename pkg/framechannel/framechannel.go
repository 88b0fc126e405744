// Package framechannel receives asynchronous frame updates from the video
// backend and keeps only the newest decoded frame for the renderer.
//
// Frames are never queued: a frame that arrives before the previous one was
// taken replaces it, and the replaced frame is counted as dropped.
package framechannel

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/user/scoresplit/pkg/ports"
)

// DataURIPrefix is prepended to a frame payload to display it as an image.
const DataURIPrefix = "data:image/jpeg;base64,"

var (
	// ErrAlreadyAttached is returned when Attach is called on an attached channel.
	ErrAlreadyAttached = errors.New("framechannel: already attached")

	// ErrMalformedFrame is returned when a payload is not a base64 JPEG image.
	ErrMalformedFrame = errors.New("framechannel: malformed frame payload")
)

// DataURI returns payload as a data URI.
func DataURI(payload string) string {
	return DataURIPrefix + payload
}

// Frame is one decoded still image.
type Frame struct {
	// Seq is the arrival order, starting at 1.
	Seq        uint64
	Payload    string // base64 JPEG as delivered
	Data       []byte // JPEG bytes
	Image      image.Image
	ReceivedAt time.Time
}

// DataURI returns the frame as a displayable data URI.
func (f Frame) DataURI() string {
	return DataURI(f.Payload)
}

// Stats counts what happened to delivered payloads.
type Stats struct {
	Received  uint64 `json:"received"`
	Dropped   uint64 `json:"dropped"`
	Malformed uint64 `json:"malformed"`
}

// Channel holds the latest frame. Deliver may be called from any goroutine;
// the remaining methods are meant for the single consumer.
type Channel struct {
	decoder ports.ImageDecoder
	logger  ports.Logger
	now     func() time.Time

	mu       sync.Mutex
	latest   *Frame
	consumed bool
	seq      uint64
	stats    Stats
	attached bool

	ready chan struct{}
}

// New creates a Channel that decodes payloads with decoder.
func New(decoder ports.ImageDecoder, logger ports.Logger) *Channel {
	return &Channel{
		decoder: decoder,
		logger:  logger.WithComponent("frames"),
		now:     time.Now,
		ready:   make(chan struct{}, 1),
	}
}

// Attach subscribes to source. A channel subscribes at most once; the
// returned function releases the subscription and may be called repeatedly.
func (c *Channel) Attach(source ports.FrameSource) (func(), error) {
	c.mu.Lock()
	if c.attached {
		c.mu.Unlock()
		return nil, ErrAlreadyAttached
	}
	c.attached = true
	c.mu.Unlock()

	unsubscribe := source.Subscribe(func(payload string) {
		// Bad payloads are logged and counted inside Deliver.
		_ = c.Deliver(payload)
	})

	var once sync.Once
	release := func() {
		once.Do(func() {
			unsubscribe()
			c.mu.Lock()
			c.attached = false
			c.mu.Unlock()
		})
	}
	return release, nil
}

// Deliver decodes payload and makes it the latest frame. A malformed payload
// leaves the previous frame in place.
func (c *Channel) Deliver(payload string) error {
	payload = strings.TrimSpace(payload)
	frame, err := c.decode(payload)
	if err != nil {
		c.mu.Lock()
		c.stats.Malformed++
		c.mu.Unlock()
		c.logger.Warn("Skipping malformed frame: %s", err)
		return err
	}

	c.mu.Lock()
	if c.latest != nil && !c.consumed {
		c.stats.Dropped++
	}
	c.seq++
	c.stats.Received++
	frame.Seq = c.seq
	c.latest = frame
	c.consumed = false
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
		// A wake-up is already pending.
	}
	return nil
}

func (c *Channel) decode(payload string) (*Frame, error) {
	if payload == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedFrame)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrMalformedFrame, err)
	}
	img, err := c.decoder.DecodeImage(data, ports.FormatJPEG)
	if err != nil {
		return nil, fmt.Errorf("%w: jpeg: %v", ErrMalformedFrame, err)
	}
	return &Frame{
		Payload:    payload,
		Data:       data,
		Image:      img,
		ReceivedAt: c.now(),
	}, nil
}

// Ready signals that a new frame may be available. Several deliveries
// between two reads collapse into one signal.
func (c *Channel) Ready() <-chan struct{} {
	return c.ready
}

// Latest returns the newest frame whether or not it was taken.
func (c *Channel) Latest() (Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return Frame{}, false
	}
	return *c.latest, true
}

// Take returns the newest frame if it has not been taken yet and marks it taken.
func (c *Channel) Take() (Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil || c.consumed {
		return Frame{}, false
	}
	c.consumed = true
	return *c.latest, true
}

// Stats returns a snapshot of the delivery counters.
func (c *Channel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Attached reports whether the channel currently holds a subscription.
func (c *Channel) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}
