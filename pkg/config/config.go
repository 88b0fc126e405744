// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/scoresplit/pkg/compose"
	"github.com/user/scoresplit/pkg/overlay"
	"github.com/user/scoresplit/pkg/server"
	"github.com/user/scoresplit/pkg/split"
	"github.com/user/scoresplit/pkg/synchronizer"
)

// Backend modes.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Config represents the full configuration for scoresplit.
type Config struct {
	// Server
	Listen         string   `yaml:"listen"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	SendBuffer     int      `yaml:"send_buffer"`
	CommandTimeout int      `yaml:"command_timeout_ms"`

	// Backend
	Backend BackendConfig `yaml:"backend"`

	// Media
	MediaRoot string `yaml:"media_root"`

	// Canvas
	CanvasWidth  int          `yaml:"canvas_width"`
	CanvasHeight int          `yaml:"canvas_height"`
	Quality      int          `yaml:"quality"`
	Region       RegionConfig `yaml:"region"`
	Theme        ThemeConfig  `yaml:"theme"`

	// Splits
	Split SplitConfig `yaml:"split"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Debug
	Debug    bool   `yaml:"debug"`
	DebugDir string `yaml:"debug_dir"`
}

// BackendConfig selects and tunes the video backend.
type BackendConfig struct {
	Mode            string `yaml:"mode"`
	URL             string `yaml:"url"`
	Listen          string `yaml:"listen"`
	AckTimeoutMs    int    `yaml:"ack_timeout_ms"`
	FFmpegPath      string `yaml:"ffmpeg_path"`
	FFprobePath     string `yaml:"ffprobe_path"`
	CaptureDevice   string `yaml:"capture_device"`
	FrameIntervalMs int    `yaml:"frame_interval_ms"`
	JPEGQScale      int    `yaml:"jpeg_qscale"`
}

// RegionConfig is the score region shown before the user moves it.
type RegionConfig struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// SplitConfig tunes split trigger matching.
type SplitConfig struct {
	Threshold  float64 `yaml:"threshold"`
	MatchWidth int     `yaml:"match_width"`
}

// ThemeConfig represents theming options.
type ThemeConfig struct {
	BackgroundColor string  `yaml:"background_color"`
	StrokeColor     string  `yaml:"stroke_color"`
	StrokeWidth     float64 `yaml:"stroke_width"`
	HandleColor     string  `yaml:"handle_color"`
	HandleSize      float64 `yaml:"handle_size"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		// Server
		Listen:         "127.0.0.1:8080",
		SendBuffer:     16,
		CommandTimeout: 10000,

		// Backend
		Backend: BackendConfig{
			Mode:            BackendLocal,
			Listen:          "127.0.0.1:8081",
			AckTimeoutMs:    5000,
			FrameIntervalMs: 100,
			JPEGQScale:      3,
		},

		// Media
		MediaRoot: ".",

		// Canvas
		CanvasWidth:  1280,
		CanvasHeight: 720,
		Quality:      80,
		Region:       RegionConfig{X: 0, Y: 0, Width: 100, Height: 100},
		Theme: ThemeConfig{
			BackgroundColor: "#000000",
			StrokeColor:     "#0000ff",
			StrokeWidth:     5,
			HandleColor:     "#ffffff",
			HandleSize:      10,
		},

		// Splits
		Split: SplitConfig{
			Threshold:  split.DefaultThreshold,
			MatchWidth: split.DefaultMatchWidth,
		},

		// Logging
		LogLevel: "info",

		// Debug
		DebugDir: "./debug",
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks values that cannot be repaired by defaults.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend.Mode {
	case BackendLocal:
	case BackendRemote:
		if c.Backend.URL == "" {
			errs = append(errs, errors.New("config: backend.url is required in remote mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown backend mode %q", c.Backend.Mode))
	}
	if c.CanvasWidth <= 0 || c.CanvasHeight <= 0 {
		errs = append(errs, fmt.Errorf("config: canvas size %dx%d must be positive", c.CanvasWidth, c.CanvasHeight))
	}
	if !c.InitialRegion().Valid() {
		errs = append(errs, fmt.Errorf("config: region %s must have a positive size", c.InitialRegion()))
	}
	if c.Split.Threshold <= 0 || c.Split.Threshold > 1 {
		errs = append(errs, fmt.Errorf("config: split threshold %v must be in (0, 1]", c.Split.Threshold))
	}
	for _, hex := range []string{c.Theme.BackgroundColor, c.Theme.StrokeColor, c.Theme.HandleColor} {
		if hex != "" && !validHex(hex) {
			errs = append(errs, fmt.Errorf("config: invalid color %q", hex))
		}
	}
	return errors.Join(errs...)
}

// InitialRegion returns the configured starting score region.
func (c Config) InitialRegion() overlay.Region {
	return overlay.Region{X: c.Region.X, Y: c.Region.Y, Width: c.Region.Width, Height: c.Region.Height}
}

// ToComposeOptions converts the canvas settings to compose.Options.
func (c Config) ToComposeOptions() compose.Options {
	return compose.Options{
		Width:       c.CanvasWidth,
		Height:      c.CanvasHeight,
		Background:  ParseColor(c.Theme.BackgroundColor),
		Stroke:      ParseColor(c.Theme.StrokeColor),
		StrokeWidth: c.Theme.StrokeWidth,
		HandleColor: ParseColor(c.Theme.HandleColor),
		HandleSize:  c.Theme.HandleSize,
		Quality:     c.Quality,
	}
}

// ToSynchronizerOptions converts Config to synchronizer.Options.
func (c Config) ToSynchronizerOptions() synchronizer.Options {
	return synchronizer.Options{
		InitialRegion: c.InitialRegion(),
		Compose:       c.ToComposeOptions(),
		Split: split.Options{
			Threshold:  c.Split.Threshold,
			MatchWidth: c.Split.MatchWidth,
		},
	}
}

// ToServerConfig converts Config to server.Config.
func (c Config) ToServerConfig() server.Config {
	return server.Config{
		Addr:           c.Listen,
		SendBuffer:     c.SendBuffer,
		CommandTimeout: time.Duration(c.CommandTimeout) * time.Millisecond,
		AllowedOrigins: c.AllowedOrigins,
	}
}

// FrameInterval returns the backend frame interval.
func (b BackendConfig) FrameInterval() time.Duration {
	return time.Duration(b.FrameIntervalMs) * time.Millisecond
}

// AckTimeout returns the remote backend ack timeout.
func (b BackendConfig) AckTimeout() time.Duration {
	return time.Duration(b.AckTimeoutMs) * time.Millisecond
}

// ParseColor parses a hex color string ("#rrggbb" or "rrggbb") to
// color.Color. Invalid input yields black.
func ParseColor(hex string) color.Color {
	if !validHex(hex) {
		return color.Black
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}
	return color.RGBA{
		R: hexByte(hex[0], hex[1]),
		G: hexByte(hex[2], hex[3]),
		B: hexByte(hex[4], hex[5]),
		A: 255,
	}
}

func validHex(hex string) bool {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return false
	}
	for i := 0; i < len(hex); i++ {
		if _, ok := hexValue(hex[i]); !ok {
			return false
		}
	}
	return true
}

func hexByte(hi, lo byte) uint8 {
	h, _ := hexValue(hi)
	l, _ := hexValue(lo)
	return h<<4 | l
}

func hexValue(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
