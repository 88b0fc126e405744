// Package main provides the CLI entry point for scoresplit.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"

	"github.com/user/scoresplit/pkg/adapters/ffmpegbackend"
	"github.com/user/scoresplit/pkg/adapters/filesink"
	"github.com/user/scoresplit/pkg/adapters/ggrenderer"
	"github.com/user/scoresplit/pkg/adapters/logger"
	"github.com/user/scoresplit/pkg/adapters/nullsink"
	"github.com/user/scoresplit/pkg/adapters/osfilesystem"
	"github.com/user/scoresplit/pkg/adapters/pathpicker"
	"github.com/user/scoresplit/pkg/adapters/videoprobe"
	"github.com/user/scoresplit/pkg/adapters/wsbackend"
	"github.com/user/scoresplit/pkg/config"
	"github.com/user/scoresplit/pkg/ports"
	"github.com/user/scoresplit/pkg/server"
	"github.com/user/scoresplit/pkg/summarizer"
	"github.com/user/scoresplit/pkg/synchronizer"
)

var version = "dev"

const backendPath = "/backend"

func main() {
	app := &cli.App{
		Name:    "scoresplit",
		Usage:   l10n.T("Mark the score region of a run video and scrub through it"),
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: l10n.T("YAML configuration file"), Category: l10n.T("Configuration")},
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: l10n.T("Log level (debug, info, warn, error)"), Category: l10n.T("Logging")},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Usage: l10n.T("Suppress all log output"), Category: l10n.T("Logging")},
			&cli.StringFlag{Name: "ffmpeg", Usage: l10n.T("Path to the ffmpeg executable"), Category: l10n.T("Backend")},
			&cli.StringFlag{Name: "ffprobe", Usage: l10n.T("Path to the ffprobe executable"), Category: l10n.T("Backend")},
			&cli.StringFlag{Name: "device", Usage: l10n.T("Capture device for live streaming"), Category: l10n.T("Backend")},
			&cli.IntFlag{Name: "frame-interval", Usage: l10n.T("Milliseconds between backend frames"), Category: l10n.T("Backend")},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: l10n.T("Serve the region editor UI over a websocket"),
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "listen", Usage: l10n.T("Address of the UI server"), Category: l10n.T("Server")},
					&cli.StringFlag{Name: "backend-url", Usage: l10n.T("Use the remote backend at this websocket URL"), Category: l10n.T("Backend")},
					&cli.StringFlag{Name: "media-root", Usage: l10n.T("Directory relative video paths are resolved against"), Category: l10n.T("Server")},
					&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: l10n.T("Enable debug output"), Category: l10n.T("Debug")},
					&cli.StringFlag{Name: "debug-dir", Usage: l10n.T("Directory for debug output"), Category: l10n.T("Debug")},
				},
				Action: runServe,
			},
			{
				Name:  "backend",
				Usage: l10n.T("Host the local video backend for remote servers"),
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "listen", Usage: l10n.T("Address of the backend host"), Category: l10n.T("Server")},
				},
				Action: runBackend,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("ffmpeg") {
		cfg.Backend.FFmpegPath = c.String("ffmpeg")
	}
	if c.IsSet("ffprobe") {
		cfg.Backend.FFprobePath = c.String("ffprobe")
	}
	if c.IsSet("device") {
		cfg.Backend.CaptureDevice = c.String("device")
	}
	if c.IsSet("frame-interval") {
		cfg.Backend.FrameIntervalMs = c.Int("frame-interval")
	}
	if c.IsSet("backend-url") {
		cfg.Backend.Mode = config.BackendRemote
		cfg.Backend.URL = c.String("backend-url")
	}
	if c.IsSet("media-root") {
		cfg.MediaRoot = c.String("media-root")
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}
	if c.IsSet("debug-dir") {
		cfg.DebugDir = c.String("debug-dir")
	}
	if c.IsSet("listen") {
		if c.Command.Name == "backend" {
			cfg.Backend.Listen = c.String("listen")
		} else {
			cfg.Listen = c.String("listen")
		}
	}

	return cfg, cfg.Validate()
}

func newLogger(c *cli.Context, cfg config.Config) ports.Logger {
	if c.Bool("quiet") {
		return logger.NewNoop()
	}
	return logger.New(ports.ParseLogLevel(cfg.LogLevel))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(log ports.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func newLocalBackend(cfg config.Config, log ports.Logger) (*ffmpegbackend.Backend, error) {
	grabber, err := ffmpegbackend.NewFFmpegGrabber(cfg.Backend.FFmpegPath, cfg.Backend.JPEGQScale)
	if err != nil {
		return nil, err
	}
	prober := videoprobe.New(cfg.Backend.FFprobePath, log)
	return ffmpegbackend.New(grabber, prober, ffmpegbackend.Options{
		FrameInterval: cfg.Backend.FrameInterval(),
		CaptureDevice: cfg.Backend.CaptureDevice,
	}, log), nil
}

func openBackend(ctx context.Context, cfg config.Config, log ports.Logger) (ports.Backend, error) {
	if cfg.Backend.Mode == config.BackendRemote {
		return wsbackend.Dial(ctx, cfg.Backend.URL, wsbackend.ClientOptions{
			AckTimeout: cfg.Backend.AckTimeout(),
			SendBuffer: cfg.SendBuffer,
		}, log)
	}
	return newLocalBackend(cfg, log)
}

// runServe executes the serve command.
func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := newLogger(c, cfg)

	ctx, cancel := signalContext(log)
	defer cancel()

	// Create adapters
	fs := osfilesystem.New()
	renderer := ggrenderer.New()

	backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer backend.Close()

	// Create debug sink
	var sink ports.DebugSink
	if cfg.Debug {
		if err := fs.MkdirAll(cfg.DebugDir); err != nil {
			return fmt.Errorf("create debug directory: %w", err)
		}
		sink = filesink.New(cfg.DebugDir, fs, renderer)
	} else {
		sink = nullsink.New()
	}

	// The server presents views; the synchronizer serves its commands.
	srv := server.New(cfg.ToServerConfig(), nil, pathpicker.Factory(fs, cfg.MediaRoot), log)
	last := &lastView{}
	presenter := synchronizer.PresenterFunc(func(v synchronizer.View) {
		last.set(v)
		srv.Present(v)
	})
	syncer, err := synchronizer.New(backend, renderer, presenter, sink, log, cfg.ToSynchronizerOptions())
	if err != nil {
		return err
	}
	srv.SetActions(syncer)

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- syncer.Run(ctx)
		cancel()
	}()

	started := time.Now()
	serveErr := srv.Run(ctx)
	cancel()
	if err := <-syncErr; err != nil {
		return err
	}

	if cfg.Debug {
		path := filepath.Join(cfg.DebugDir, "summary.md")
		w := summarizer.NewWriter(summarizer.NewMarkdownFormatter(), fs)
		if err := w.Write(path, buildSummary(last.get(), cfg, time.Since(started))); err != nil {
			log.Warn("Failed to write summary: %s", err)
		} else {
			log.Info("Summary saved to %s", path)
		}
	}
	return serveErr
}

// lastView keeps the most recent view for the shutdown summary.
type lastView struct {
	mu sync.Mutex
	v  synchronizer.View
}

func (l *lastView) set(v synchronizer.View) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.v = v
}

func (l *lastView) get() synchronizer.View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.v
}

func buildSummary(v synchronizer.View, cfg config.Config, uptime time.Duration) *summarizer.Summary {
	return summarizer.NewBuilder().
		WithSession(v.Session.State, v.Session.Source, v.Session.LastSeek).
		WithRegion(v.Region.X, v.Region.Y, v.Region.Width, v.Region.Height).
		WithFrames(summarizer.FrameInfo{
			Received:  v.Stats.Received,
			Dropped:   v.Stats.Dropped,
			Malformed: v.Stats.Malformed,
			LastSeq:   v.FrameSeq,
		}).
		WithSplits(v.Splits.Count, v.Splits.Next).
		WithSettings(summarizer.Settings{
			Backend:         cfg.Backend.Mode,
			CanvasWidth:     cfg.CanvasWidth,
			CanvasHeight:    cfg.CanvasHeight,
			FrameIntervalMs: cfg.Backend.FrameIntervalMs,
		}).
		WithUptime(uptime).
		Build()
}

// runBackend executes the backend command.
func runBackend(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := newLogger(c, cfg)

	ctx, cancel := signalContext(log)
	defer cancel()

	backend, err := newLocalBackend(cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	handler := wsbackend.NewHandler(backend, wsbackend.HandlerOptions{
		CommandTimeout: time.Duration(cfg.CommandTimeout) * time.Millisecond,
		SendBuffer:     cfg.SendBuffer,
	}, log)

	mux := http.NewServeMux()
	mux.Handle(backendPath, handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		body, _ := sonic.Marshal(map[string]interface{}{
			"status":  "ok",
			"clients": handler.Clients(),
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})

	ln, err := net.Listen("tcp", cfg.Backend.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Backend.Listen, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Backend listening on ws://%s%s", ln.Addr(), backendPath)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
