// Package seek owns the scrub position and turns slider and wheel input
// into seek commands.
package seek

import (
	"context"
	"fmt"

	"github.com/user/scoresplit/pkg/ports"
)

const (
	// MaxPosition is the upper bound of the seek domain. Positions are
	// approximate percentiles of the video length, not timestamps.
	MaxPosition = 100000

	// WheelStep is how far a single wheel event moves the position.
	WheelStep = 10
)

// Emitter delivers seek commands to the backend.
type Emitter interface {
	Seek(ctx context.Context, position int) error
}

// Clamp limits v to [0, MaxPosition].
func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxPosition {
		return MaxPosition
	}
	return v
}

// Controller holds the seek position.
//
// Every input updates the position first and then emits it, so the payload
// of an emitted command always equals Position() after the call returns.
// Emission is fire-and-forget from the controller's point of view: a failed
// emission is reported but does not roll the position back.
type Controller struct {
	emitter  Emitter
	position int
	logger   ports.Logger
}

// NewController creates a controller at position 0.
func NewController(emitter Emitter, logger ports.Logger) *Controller {
	return &Controller{
		emitter: emitter,
		logger:  logger.WithComponent("seek"),
	}
}

// Position returns the current seek position.
func (c *Controller) Position() int {
	return c.position
}

// Reset moves the position back to 0 without emitting.
func (c *Controller) Reset() {
	c.position = 0
}

// SetFromSlider stores the slider value, clamped, and emits it.
func (c *Controller) SetFromSlider(ctx context.Context, value int) (int, error) {
	c.position = Clamp(value)
	return c.position, c.emit(ctx)
}

// Wheel steps the position by WheelStep: downward motion (deltaY > 0)
// decreases it, upward motion increases it. A zero delta is ignored and
// emits nothing.
func (c *Controller) Wheel(ctx context.Context, deltaY float64) (int, error) {
	switch {
	case deltaY > 0:
		c.position = Clamp(c.position - WheelStep)
	case deltaY < 0:
		c.position = Clamp(c.position + WheelStep)
	default:
		return c.position, nil
	}
	return c.position, c.emit(ctx)
}

func (c *Controller) emit(ctx context.Context) error {
	c.logger.Debug("Seeking to %d", c.position)
	if err := c.emitter.Seek(ctx, c.position); err != nil {
		return fmt.Errorf("emit seek %d: %w", c.position, err)
	}
	return nil
}
