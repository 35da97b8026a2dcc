// Package main provides the CLI entry point for mjpegcap.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/mjpegcap/pkg/adapters/filesink"
	"github.com/user/mjpegcap/pkg/adapters/filesource"
	"github.com/user/mjpegcap/pkg/adapters/ggrenderer"
	"github.com/user/mjpegcap/pkg/adapters/logger"
	"github.com/user/mjpegcap/pkg/adapters/mjpegmft"
	"github.com/user/mjpegcap/pkg/adapters/nullsink"
	"github.com/user/mjpegcap/pkg/adapters/osfilesystem"
	"github.com/user/mjpegcap/pkg/adapters/planewriter"
	"github.com/user/mjpegcap/pkg/adapters/rawdump"
	"github.com/user/mjpegcap/pkg/adapters/webcam"
	"github.com/user/mjpegcap/pkg/config"
	"github.com/user/mjpegcap/pkg/orchestrator"
	"github.com/user/mjpegcap/pkg/ports"
	"github.com/user/mjpegcap/pkg/stages/capture"
	"github.com/user/mjpegcap/pkg/stages/decode"
	"github.com/user/mjpegcap/pkg/stages/dump"
	"github.com/user/mjpegcap/pkg/summarizer"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "mjpegcap",
		Usage:   l10n.T("Capture MJPEG from a webcam and dump decoded NV12 planes"),
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: l10n.T("YAML configuration file")},
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Value: "info", Usage: l10n.T("Log level (debug, info, warn, error)")},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Usage: l10n.T("Suppress all log output")},
		},
		Commands: []*cli.Command{
			{
				Name:   "devices",
				Usage:  l10n.T("List capture devices"),
				Action: runDevices,
			},
			{
				Name:   "capture",
				Usage:  l10n.T("Capture from a webcam and write the planes of the first frame"),
				Flags:  append(captureFlags(), outputFlags()...),
				Action: runCapture,
			},
			{
				Name:      "decode",
				Usage:     l10n.T("Decode a recorded MJPEG stream or a directory of JPEG files"),
				ArgsUsage: "<file|dir>",
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "fps", Usage: l10n.T("Frame rate used for timestamps")},
					&cli.IntFlag{Name: "samples", Aliases: []string{"n"}, Usage: l10n.T("Number of samples to read")},
				}, outputFlags()...),
				Action: runDecode,
			},
			{
				Name:  "version",
				Usage: l10n.T("Show version information"),
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, l10n.F("mjpegcap version %s", version))
					return nil
				},
			},
		},
	}
}

func captureFlags() []cli.Flag {
	catCapture := l10n.T("Capture")
	return []cli.Flag{
		&cli.IntFlag{Name: "device", Aliases: []string{"d"}, Usage: l10n.T("Capture device index"), Category: catCapture},
		&cli.IntFlag{Name: "width", Aliases: []string{"W"}, Usage: l10n.T("Frame width (default: 320)"), Category: catCapture},
		&cli.IntFlag{Name: "height", Aliases: []string{"H"}, Usage: l10n.T("Frame height (default: 240)"), Category: catCapture},
		&cli.IntFlag{Name: "fps", Usage: l10n.T("Frame rate (default: 30)"), Category: catCapture},
		&cli.IntFlag{Name: "samples", Aliases: []string{"n"}, Usage: l10n.T("Number of samples to read (default: 100)"), Category: catCapture},
	}
}

func outputFlags() []cli.Flag {
	catTransform := l10n.T("Transform")
	catOutput := l10n.T("Output")
	catDebug := l10n.T("Debug")
	return []cli.Flag{
		&cli.StringFlag{Name: "backend", Usage: l10n.T("Decoder backend (auto, hardware, software)"), Category: catTransform},
		&cli.StringFlag{Name: "clsid", Usage: l10n.T("CLSID of the hardware MJPEG decoder"), Category: catTransform},
		&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Usage: l10n.T("Directory for planeY.bmp and planeUV.bmp"), Category: catOutput},
		&cli.BoolFlag{Name: "raw", Usage: l10n.T("Also append every decoded frame to a raw NV12 file"), Category: catOutput},
		&cli.BoolFlag{Name: "skip-drain", Usage: l10n.T("Do not drain the transform at end of stream"), Category: catTransform},
		&cli.StringFlag{Name: "summary", Usage: l10n.T("Write a Markdown summary to this path"), Category: catOutput},
		&cli.BoolFlag{Name: "debug", Usage: l10n.T("Enable debug output"), Category: catDebug},
		&cli.StringFlag{Name: "debug-dir", Usage: l10n.T("Directory for debug output"), Category: catDebug},
	}
}

func newLogger(c *cli.Context, cfg config.Config) ports.Logger {
	if c.Bool("quiet") {
		return logger.NewNoop()
	}
	level := cfg.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	return logger.NewConsole(ports.ParseLogLevel(level))
}

// loadConfig reads the config file, if any, and applies command line overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	ints := map[string]*int{
		"device":  &cfg.Device,
		"width":   &cfg.Width,
		"height":  &cfg.Height,
		"fps":     &cfg.FPS,
		"samples": &cfg.Samples,
	}
	for name, dst := range ints {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	strs := map[string]*string{
		"backend":    &cfg.Backend,
		"clsid":      &cfg.CLSID,
		"output-dir": &cfg.OutputDir,
		"summary":    &cfg.SummaryOut,
		"debug-dir":  &cfg.DebugDir,
	}
	for name, dst := range strs {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	bools := map[string]*bool{
		"raw":        &cfg.Raw,
		"skip-drain": &cfg.SkipDrain,
		"debug":      &cfg.Debug,
	}
	for name, dst := range bools {
		if c.IsSet(name) {
			*dst = c.Bool(name)
		}
	}

	return cfg, cfg.Validate()
}

func runDevices(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := newLogger(c, cfg)

	devices, err := webcam.New(osfilesystem.New(), log).Devices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(c.App.Writer, l10n.T("No capture devices found"))
		return nil
	}
	for _, d := range devices {
		if d.Path != "" {
			fmt.Fprintf(c.App.Writer, "%d: %s (%s)\n", d.Index, d.Name, d.Path)
		} else {
			fmt.Fprintf(c.App.Writer, "%d: %s\n", d.Index, d.Name)
		}
	}
	return nil
}

func runCapture(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := newLogger(c, cfg)
	fs := osfilesystem.New()
	return run(c.Context, cfg, webcam.New(fs, log), fs, log)
}

func runDecode(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New(l10n.T("decode takes exactly one file or directory"))
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	// A recording always plays back at its own size from device 0.
	cfg.Device = 0
	log := newLogger(c, cfg)
	fs := osfilesystem.New()
	fps := 0
	if c.IsSet("fps") {
		fps = cfg.FPS
	}
	return run(c.Context, cfg, filesource.New(fs, c.Args().First(), fps, log), fs, log)
}

// run wires the adapters and stages and executes one capture run.
func run(parent context.Context, cfg config.Config, devices ports.DeviceEnumerator, fs ports.FileSystem, log ports.Logger) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Warn(l10n.T("Interrupted, shutting down..."))
			cancel()
		case <-ctx.Done():
		}
	}()

	renderer := ggrenderer.New()

	var sink ports.DebugSink
	if cfg.Debug {
		if err := fs.MkdirAll(cfg.DebugDir); err != nil {
			return fmt.Errorf("create debug directory: %w", err)
		}
		sink = filesink.New(cfg.DebugDir, fs, renderer)
	} else {
		sink = nullsink.New()
	}

	transform, backend, err := mjpegmft.New(cfg.TransformOptions(log))
	if err != nil {
		return fmt.Errorf("create transform: %w", err)
	}

	var raw ports.FrameWriter
	if path := cfg.RawPath(); path != "" {
		raw = rawdump.New(fs, path)
	}

	orch := orchestrator.New(
		capture.NewStage(devices, log),
		decode.NewStage(transform, sink, log),
		dump.NewStage(planewriter.New(fs, cfg.PlaneOptions(), log), raw, renderer, sink, log),
		sink,
		log,
	)

	result, err := orch.Run(ctx, cfg.ToOrchestratorConfig())
	if err != nil {
		return err
	}
	for _, p := range result.Paths {
		log.Info(l10n.F("Output saved to %s", p))
	}
	if path := cfg.RawPath(); path != "" && result.OutputType.Width > 0 {
		log.Info(l10n.F("Play back with: ffmpeg -f rawvideo -s %dx%d -pix_fmt nv12 -i %s",
			result.OutputType.Width, result.OutputType.Height, path))
	}

	if cfg.SummaryOut != "" {
		summary := buildSummary(cfg, backend, result)
		w := summarizer.NewWriter(summarizer.NewMarkdownFormatter(), fs)
		if err := w.Write(cfg.SummaryOut, summary); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		log.Info(l10n.F("Summary saved to %s", cfg.SummaryOut))
	}
	return nil
}

func buildSummary(cfg config.Config, backend mjpegmft.Backend, result orchestrator.RunResult) *summarizer.Summary {
	return summarizer.NewBuilder().
		WithDevice(result.Device.Index, result.Device.Name, result.Device.Path).
		WithCapture(summarizer.CaptureInfo{
			Format: string(result.CaptureType.Subtype),
			Width:  result.CaptureType.Width,
			Height: result.CaptureType.Height,
			FPS:    result.CaptureType.FrameRate(),
		}).
		WithTransform(summarizer.TransformInfo{
			Backend:       string(backend),
			OutputFormat:  string(result.OutputType.Subtype),
			Stride:        result.OutputType.Stride,
			Submitted:     result.Stats.Submitted,
			Produced:      result.Stats.Produced,
			NeedMoreInput: result.Stats.NeedMoreInput,
			StreamChanges: result.Stats.StreamChanges,
		}).
		WithRun(summarizer.RunInfo{
			Requested:    cfg.Samples,
			Samples:      result.Samples,
			Ticks:        result.Ticks,
			Frames:       result.Frames,
			FirstFrameMs: result.FirstFrame.Milliseconds(),
			ElapsedMs:    result.Elapsed.Milliseconds(),
		}).
		WithOutputs(result.Paths).
		Build()
}
