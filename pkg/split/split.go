// Package split watches frames for split triggers and cuts out the score
// region once a trigger shows up.
//
// Splits are checked in the order they were added. Each one pairs a trigger
// template, cut from a frame the operator marked, with the score region to
// crop when the trigger reappears. Frames and templates are compared on
// grayscale copies, downscaled to MatchWidth, with zero-mean normalized
// cross-correlation. Reading the number inside the cropped region is left
// to the caller.
package split

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/user/scoresplit/pkg/overlay"
	"github.com/user/scoresplit/pkg/ports"
)

const (
	// DefaultThreshold is the correlation a trigger must exceed to match.
	DefaultThreshold = 0.95

	// DefaultMatchWidth is the frame width matching runs at.
	DefaultMatchWidth = 320
)

var (
	// ErrNoSplit is returned by Check when every split has been passed.
	ErrNoSplit = errors.New("split: no split pending")

	// ErrEmptyTrigger is returned when a trigger image has no pixels.
	ErrEmptyTrigger = errors.New("split: empty trigger image")

	// ErrRegionOutside is returned when a region does not overlap the frame.
	ErrRegionOutside = errors.New("split: region outside frame")
)

// Options tunes matching.
type Options struct {
	Threshold  float64
	MatchWidth int
}

// Split is one trigger and the score region read when it matches.
type Split struct {
	Trigger *image.Gray
	Score   overlay.Region
}

// Match describes a triggered split.
type Match struct {
	Index       int
	Correlation float64
	// At is the trigger's top-left corner in frame pixels.
	At image.Point
	// Score is the score region cropped from the frame.
	Score *image.Gray
}

// LastMatch is the reported part of the most recent match.
type LastMatch struct {
	Index       int     `json:"index"`
	Correlation float64 `json:"correlation"`
}

// Status summarizes split progress for the UI.
type Status struct {
	Count int        `json:"count"`
	Next  int        `json:"next"`
	Last  *LastMatch `json:"last,omitempty"`
}

// Manager holds the split list and the index of the next split to check.
// It is not safe for concurrent use.
type Manager struct {
	opts   Options
	splits []Split
	next   int
	last   *LastMatch
	logger ports.Logger
}

// NewManager creates an empty Manager. Zero options fall back to the defaults.
func NewManager(opts Options, logger ports.Logger) *Manager {
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MatchWidth <= 0 {
		opts.MatchWidth = DefaultMatchWidth
	}
	return &Manager{opts: opts, logger: logger.WithComponent("split")}
}

// Add appends a split and returns its index.
func (m *Manager) Add(trigger image.Image, score overlay.Region) (int, error) {
	if trigger == nil || trigger.Bounds().Empty() {
		return 0, ErrEmptyTrigger
	}
	if !score.Valid() {
		return 0, overlay.ErrInvalidRegion
	}
	m.splits = append(m.splits, Split{Trigger: Grayscale(trigger), Score: score})
	index := len(m.splits) - 1
	m.logger.Info("Split %d added with score region %s", index, score)
	return index, nil
}

// Pending reports whether a split is left to check.
func (m *Manager) Pending() bool {
	return m.next < len(m.splits)
}

// Reset rewinds to the first split.
func (m *Manager) Reset() {
	m.next = 0
	m.last = nil
}

// Clear removes every split.
func (m *Manager) Clear() {
	m.splits = nil
	m.Reset()
}

// Status returns the current progress.
func (m *Manager) Status() Status {
	s := Status{Count: len(m.splits), Next: m.next}
	if m.last != nil {
		last := *m.last
		s.Last = &last
	}
	return s
}

// Check looks for the next split's trigger in frame. On a match the score
// region is cropped and the manager moves on to the following split.
func (m *Manager) Check(frame image.Image) (Match, bool, error) {
	if !m.Pending() {
		return Match{}, false, ErrNoSplit
	}
	sp := m.splits[m.next]
	gray := Grayscale(frame)

	corr, at := m.locate(gray, sp.Trigger)
	if corr <= m.opts.Threshold {
		return Match{}, false, nil
	}

	score, err := Crop(gray, sp.Score)
	if err != nil {
		return Match{}, false, fmt.Errorf("crop split %d: %w", m.next, err)
	}

	match := Match{Index: m.next, Correlation: corr, At: at, Score: score}
	m.last = &LastMatch{Index: m.next, Correlation: corr}
	m.next++
	m.logger.Info("Split %d triggered (correlation %.3f)", match.Index, corr)
	return match, true, nil
}

// locate runs matching at MatchWidth and maps the hit back to frame pixels.
func (m *Manager) locate(frame, trigger *image.Gray) (float64, image.Point) {
	fw := frame.Bounds().Dx()
	if fw <= m.opts.MatchWidth {
		return MatchTemplate(frame, trigger)
	}

	f := float64(m.opts.MatchWidth) / float64(fw)
	corr, at := MatchTemplate(scaleGray(frame, f), scaleGray(trigger, f))
	return corr, image.Pt(int(math.Round(float64(at.X)/f)), int(math.Round(float64(at.Y)/f)))
}

// Grayscale returns img as an *image.Gray with its origin at 0,0.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// Crop copies the part of img covered by r. Fractional edges round outward
// and the result is clipped to the image.
func Crop(img *image.Gray, r overlay.Region) (*image.Gray, error) {
	rect := image.Rect(
		int(math.Floor(r.X)), int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.Width)), int(math.Ceil(r.Y+r.Height)),
	).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrRegionOutside, r)
	}
	out := image.NewGray(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out, nil
}

// MatchTemplate slides tmpl over img and returns the best zero-mean
// normalized cross-correlation in [-1, 1] with its top-left position.
// Flat windows score 0. A template larger than img never matches.
func MatchTemplate(img, tmpl *image.Gray) (float64, image.Point) {
	iw, ih := img.Rect.Dx(), img.Rect.Dy()
	tw, th := tmpl.Rect.Dx(), tmpl.Rect.Dy()
	if tw == 0 || th == 0 || tw > iw || th > ih {
		return 0, image.Point{}
	}
	n := float64(tw * th)

	// Template with its mean removed, so the window mean drops out of the
	// numerator.
	t := make([]float64, tw*th)
	var tsum float64
	for y := 0; y < th; y++ {
		row := tmpl.Pix[y*tmpl.Stride : y*tmpl.Stride+tw]
		for x, v := range row {
			t[y*tw+x] = float64(v)
			tsum += float64(v)
		}
	}
	tmean := tsum / n
	var tvar float64
	for i := range t {
		t[i] -= tmean
		tvar += t[i] * t[i]
	}
	if tvar == 0 {
		return 0, image.Point{}
	}

	sum, sq := integrals(img)
	stride := iw + 1
	window := func(tab []float64, x, y int) float64 {
		return tab[(y+th)*stride+x+tw] - tab[y*stride+x+tw] - tab[(y+th)*stride+x] + tab[y*stride+x]
	}

	best, bestAt := math.Inf(-1), image.Point{}
	for y := 0; y+th <= ih; y++ {
		for x := 0; x+tw <= iw; x++ {
			s := window(sum, x, y)
			ivar := window(sq, x, y) - s*s/n
			var corr float64
			if ivar > 1e-9 {
				var num float64
				for ty := 0; ty < th; ty++ {
					row := img.Pix[(y+ty)*img.Stride+x : (y+ty)*img.Stride+x+tw]
					trow := t[ty*tw : ty*tw+tw]
					for tx, v := range row {
						num += float64(v) * trow[tx]
					}
				}
				corr = num / math.Sqrt(ivar*tvar)
			}
			if corr > best {
				best, bestAt = corr, image.Pt(x, y)
			}
		}
	}
	return best, bestAt
}

// integrals returns summed-area tables of img and of its squares, each
// (w+1)*(h+1) with a zero first row and column.
func integrals(img *image.Gray) (sum, sq []float64) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	stride := w + 1
	sum = make([]float64, stride*(h+1))
	sq = make([]float64, stride*(h+1))
	for y := 0; y < h; y++ {
		var rs, rq float64
		for x := 0; x < w; x++ {
			v := float64(img.Pix[y*img.Stride+x])
			rs += v
			rq += v * v
			sum[(y+1)*stride+x+1] = sum[y*stride+x+1] + rs
			sq[(y+1)*stride+x+1] = sq[y*stride+x+1] + rq
		}
	}
	return sum, sq
}

func scaleGray(g *image.Gray, f float64) *image.Gray {
	b := g.Bounds()
	w := max(1, int(math.Round(float64(b.Dx())*f)))
	h := max(1, int(math.Round(float64(b.Dy())*f)))
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), g, b, draw.Src, nil)
	return dst
}
