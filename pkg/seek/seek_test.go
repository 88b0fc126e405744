package seek

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/user/scoresplit/pkg/adapters/logger"
)

// recordingEmitter records every emitted position.
type recordingEmitter struct {
	positions []int
	err       error
}

func (e *recordingEmitter) Seek(ctx context.Context, position int) error {
	e.positions = append(e.positions, position)
	return e.err
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-1, 0},
		{math.MinInt, 0},
		{0, 0},
		{50000, 50000},
		{MaxPosition, MaxPosition},
		{MaxPosition + 1, MaxPosition},
		{math.MaxInt, MaxPosition},
	}

	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestController_SetFromSlider(t *testing.T) {
	em := &recordingEmitter{}
	c := NewController(em, logger.NewNoop())
	ctx := context.Background()

	for _, v := range []int{50000, -20, 250000, 0, MaxPosition} {
		got, err := c.SetFromSlider(ctx, v)
		if err != nil {
			t.Fatalf("SetFromSlider(%d) failed: %v", v, err)
		}
		if got < 0 || got > MaxPosition {
			t.Errorf("SetFromSlider(%d) = %d, out of range", v, got)
		}
		if got != c.Position() {
			t.Errorf("SetFromSlider(%d) returned %d, Position() = %d", v, got, c.Position())
		}
	}

	want := []int{50000, 0, MaxPosition, 0, MaxPosition}
	if len(em.positions) != len(want) {
		t.Fatalf("emitted %v, want %v", em.positions, want)
	}
	for i := range want {
		if em.positions[i] != want[i] {
			t.Errorf("emission %d = %d, want %d", i, em.positions[i], want[i])
		}
	}
}

func TestController_WheelDownFromMiddle(t *testing.T) {
	em := &recordingEmitter{}
	c := NewController(em, logger.NewNoop())
	ctx := context.Background()

	if _, err := c.SetFromSlider(ctx, 50000); err != nil {
		t.Fatal(err)
	}
	em.positions = nil

	got, err := c.Wheel(ctx, 5)
	if err != nil {
		t.Fatalf("Wheel failed: %v", err)
	}
	if got != 49990 {
		t.Errorf("Wheel(+5) = %d, want 49990", got)
	}
	if len(em.positions) != 1 || em.positions[0] != 49990 {
		t.Errorf("emitted %v, want [49990]", em.positions)
	}
}

func TestController_WheelStepsExactly(t *testing.T) {
	em := &recordingEmitter{}
	c := NewController(em, logger.NewNoop())
	ctx := context.Background()
	c.SetFromSlider(ctx, 1000)

	deltas := []float64{-120, -0.5, 3, 100, -1}
	prev := c.Position()
	for _, d := range deltas {
		got, _ := c.Wheel(ctx, d)
		step := got - prev
		if d > 0 && step != -WheelStep {
			t.Errorf("Wheel(%v) moved by %d, want %d", d, step, -WheelStep)
		}
		if d < 0 && step != WheelStep {
			t.Errorf("Wheel(%v) moved by %d, want %d", d, step, WheelStep)
		}
		prev = got
	}
}

func TestController_WheelZeroIsIgnored(t *testing.T) {
	em := &recordingEmitter{}
	c := NewController(em, logger.NewNoop())

	got, err := c.Wheel(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 || len(em.positions) != 0 {
		t.Errorf("Wheel(0) = %d with emissions %v, want 0 and none", got, em.positions)
	}
}

func TestController_WheelClampsAtBounds(t *testing.T) {
	em := &recordingEmitter{}
	c := NewController(em, logger.NewNoop())
	ctx := context.Background()

	got, _ := c.Wheel(ctx, 1)
	if got != 0 {
		t.Errorf("Wheel down at 0 = %d, want 0", got)
	}

	c.SetFromSlider(ctx, MaxPosition-5)
	got, _ = c.Wheel(ctx, -1)
	if got != MaxPosition {
		t.Errorf("Wheel up near max = %d, want %d", got, MaxPosition)
	}
}

func TestController_EmitErrorKeepsPosition(t *testing.T) {
	errDown := errors.New("backend down")
	em := &recordingEmitter{err: errDown}
	c := NewController(em, logger.NewNoop())

	got, err := c.SetFromSlider(context.Background(), 700)
	if !errors.Is(err, errDown) {
		t.Fatalf("error = %v, want wrapped %v", err, errDown)
	}
	if got != 700 || c.Position() != 700 {
		t.Errorf("position = %d, want 700", c.Position())
	}
}

func TestController_Reset(t *testing.T) {
	em := &recordingEmitter{}
	c := NewController(em, logger.NewNoop())
	c.SetFromSlider(context.Background(), 300)

	c.Reset()

	if c.Position() != 0 {
		t.Errorf("Position after Reset = %d, want 0", c.Position())
	}
	if len(em.positions) != 1 {
		t.Errorf("Reset emitted: %v", em.positions)
	}
}
