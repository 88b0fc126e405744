package ffmpegbackend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"
)

// ErrFFmpegNotFound is returned when no ffmpeg executable can be located.
var ErrFFmpegNotFound = errors.New("ffmpegbackend: ffmpeg not found")

// Grabber produces single JPEG frames.
type Grabber interface {
	// FrameAt returns the frame of the video at path shown at offset at.
	FrameAt(ctx context.Context, path string, at time.Duration) ([]byte, error)

	// Capture returns the current frame of a live capture device.
	Capture(ctx context.Context, device string) ([]byte, error)
}

// FFmpegGrabber grabs frames by running ffmpeg once per frame.
type FFmpegGrabber struct {
	ffmpegPath string
	quality    int
}

// NewFFmpegGrabber locates ffmpeg and returns a grabber. customPath, when
// set, must point at an existing executable. quality is the mjpeg qscale
// (2 best, 31 worst); zero selects 3.
func NewFFmpegGrabber(customPath string, quality int) (*FFmpegGrabber, error) {
	path, err := findFFmpeg(customPath)
	if err != nil {
		return nil, err
	}
	if quality <= 0 {
		quality = 3
	}
	return &FFmpegGrabber{ffmpegPath: path, quality: quality}, nil
}

// findFFmpeg searches for ffmpeg in PATH and common locations.
func findFFmpeg(customPath string) (string, error) {
	if customPath != "" {
		if _, err := os.Stat(customPath); err == nil {
			return customPath, nil
		}
		return "", fmt.Errorf("%w: custom path %s not found", ErrFFmpegNotFound, customPath)
	}

	execName := "ffmpeg"
	if runtime.GOOS == "windows" {
		execName = "ffmpeg.exe"
	}
	if path, err := exec.LookPath(execName); err == nil {
		return path, nil
	}

	var commonPaths []string
	if runtime.GOOS == "windows" {
		commonPaths = []string{
			`C:\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files\ffmpeg\bin\ffmpeg.exe`,
		}
	} else {
		commonPaths = []string{
			"/usr/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
			"/opt/homebrew/bin/ffmpeg",
			"/snap/bin/ffmpeg",
		}
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", ErrFFmpegNotFound
}

// FrameAt implements Grabber.
func (g *FFmpegGrabber) FrameAt(ctx context.Context, path string, at time.Duration) ([]byte, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		// Input seeking is fast and lands on the exact frame with re-encoding.
		"-ss", strconv.FormatFloat(at.Seconds(), 'f', 3, 64),
		"-i", path,
	}
	return g.run(ctx, append(args, g.outputArgs()...))
}

// Capture implements Grabber.
func (g *FFmpegGrabber) Capture(ctx context.Context, device string) ([]byte, error) {
	args := append([]string{"-hide_banner", "-loglevel", "error"}, captureInputArgs(device)...)
	return g.run(ctx, append(args, g.outputArgs()...))
}

func (g *FFmpegGrabber) outputArgs() []string {
	return []string{
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", strconv.Itoa(g.quality),
		"pipe:1",
	}
}

func (g *FFmpegGrabber) run(ctx context.Context, args []string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.ffmpegPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w\nstderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame: %s", stderr.String())
	}
	return stdout.Bytes(), nil
}

// captureInputArgs returns the platform input options for a capture device.
// An empty device selects the platform's first camera.
func captureInputArgs(device string) []string {
	switch runtime.GOOS {
	case "darwin":
		if device == "" {
			device = "0"
		}
		return []string{"-f", "avfoundation", "-framerate", "30", "-i", device}
	case "windows":
		if device == "" {
			device = "video=Integrated Camera"
		}
		return []string{"-f", "dshow", "-i", device}
	default:
		if device == "" {
			device = "/dev/video0"
		}
		return []string{"-f", "v4l2", "-i", device}
	}
}

// Ensure FFmpegGrabber implements Grabber
var _ Grabber = (*FFmpegGrabber)(nil)
