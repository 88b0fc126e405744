// Package videoprobe reads the duration and video codec of a video file.
//
// MP4 files are parsed in-process with mp4ff. Anything mp4ff cannot read, or
// an MP4 whose movie header carries no duration (fragmented files), falls
// back to ffprobe.
package videoprobe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/scoresplit/pkg/ports"
)

// Codec represents a video codec type.
type Codec string

const (
	CodecH264    Codec = "h264"
	CodecHEVC    Codec = "hevc"
	CodecAV1     Codec = "av1"
	CodecUnknown Codec = "unknown"
)

var (
	// ErrNoDuration is returned when no duration could be determined.
	ErrNoDuration = errors.New("videoprobe: duration unknown")

	// ErrFFprobeNotFound is returned when the ffprobe fallback is needed but unavailable.
	ErrFFprobeNotFound = errors.New("videoprobe: ffprobe not found")
)

// Info describes a video file.
type Info struct {
	Duration time.Duration
	Codec    Codec
}

// Runner runs an external command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w\nstderr: %s", name, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// Prober probes video files.
type Prober struct {
	ffprobe string
	run     Runner
	logger  ports.Logger
}

// New creates a Prober. An empty ffprobePath looks ffprobe up in PATH.
func New(ffprobePath string, logger ports.Logger) *Prober {
	return &Prober{
		ffprobe: ffprobePath,
		run:     execRunner,
		logger:  logger.WithComponent("probe"),
	}
}

// WithRunner replaces the command runner used for ffprobe.
func (p *Prober) WithRunner(run Runner) *Prober {
	p.run = run
	return p
}

// Duration returns the playback length of the file at path.
func (p *Prober) Duration(ctx context.Context, path string) (time.Duration, error) {
	info, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

// Probe reads the file's duration and codec.
func (p *Prober) Probe(ctx context.Context, path string) (Info, error) {
	info, err := probeFile(path)
	if err == nil && info.Duration > 0 {
		return info, nil
	}
	if err != nil {
		p.logger.Debug("mp4 probe of %s failed, using ffprobe: %s", path, err)
	}

	d, ferr := p.ffprobeDuration(ctx, path)
	if ferr != nil {
		if err != nil {
			return Info{}, fmt.Errorf("probe %s: %w (mp4: %v)", path, ferr, err)
		}
		return Info{}, fmt.Errorf("probe %s: %w", path, ferr)
	}
	info.Duration = d
	if info.Codec == "" {
		info.Codec = CodecUnknown
	}
	return info, nil
}

func probeFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return ProbeMP4(f)
}

// ProbeMP4 reads duration and codec from an MP4 movie header.
// A fragmented file may report a zero duration.
func ProbeMP4(r io.ReadSeeker) (Info, error) {
	file, err := mp4.DecodeFile(r)
	if err != nil {
		return Info{}, fmt.Errorf("decode mp4: %w", err)
	}

	moov := file.Moov
	if moov == nil && file.Init != nil {
		moov = file.Init.Moov
	}
	if moov == nil || moov.Mvhd == nil {
		return Info{}, fmt.Errorf("decode mp4: no movie header")
	}

	info := Info{Codec: CodecUnknown}
	if ts := moov.Mvhd.Timescale; ts > 0 {
		info.Duration = time.Duration(float64(moov.Mvhd.Duration) / float64(ts) * float64(time.Second))
	}
	for _, trak := range moov.Traks {
		if c := codecOf(trak); c != CodecUnknown {
			info.Codec = c
			break
		}
	}
	return info, nil
}

func codecOf(trak *mp4.TrakBox) Codec {
	if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
		return CodecUnknown
	}
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return CodecUnknown
	}
	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		switch child.Type() {
		case "avc1", "avc3":
			return CodecH264
		case "hvc1", "hev1":
			return CodecHEVC
		case "av01":
			return CodecAV1
		}
	}
	return CodecUnknown
}

func (p *Prober) ffprobeDuration(ctx context.Context, path string) (time.Duration, error) {
	bin := p.ffprobe
	if bin == "" {
		found, err := exec.LookPath("ffprobe")
		if err != nil {
			return 0, ErrFFprobeNotFound
		}
		bin = found
	}

	out, err := p.run(ctx, bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	return parseSeconds(string(out))
}

func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, ErrNoDuration
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, s)
	}
	if secs <= 0 {
		return 0, ErrNoDuration
	}
	return time.Duration(secs * float64(time.Second)), nil
}
