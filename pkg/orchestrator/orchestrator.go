// Package orchestrator coordinates the capture, decode and dump stages.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ideamans/go-l10n"

	"github.com/user/mjpegcap/pkg/pipeline"
	"github.com/user/mjpegcap/pkg/ports"
)

// Config contains all configuration for the orchestrator.
type Config struct {
	// Capture
	DeviceIndex int
	Width       int
	Height      int
	FPS         int

	// SampleCount is the number of read attempts. Stream ticks count as attempts.
	SampleCount int

	// SkipDrain leaves frames still held by the transform undecoded.
	SkipDrain bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	capture := pipeline.DefaultCaptureInput()
	return Config{
		DeviceIndex: capture.DeviceIndex,
		Width:       capture.Width,
		Height:      capture.Height,
		FPS:         capture.FPS,
		SampleCount: 100,
	}
}

// Decoder is the decode stage: a session with an explicit setup and drain.
type Decoder interface {
	pipeline.Session[pipeline.DecodeInput, pipeline.DecodeResult]

	// Prepare configures and starts the transform.
	Prepare(ctx context.Context, input pipeline.PrepareInput) (pipeline.PrepareResult, error)

	// Drain returns the frames still held by the transform.
	Drain(ctx context.Context) ([]*ports.Frame, error)

	// Stats returns the counters of the session.
	Stats() pipeline.DecodeStats
}

// Orchestrator coordinates the execution of all pipeline stages.
type Orchestrator struct {
	captureStage pipeline.Stage[pipeline.CaptureInput, pipeline.CaptureResult]
	decodeStage  Decoder
	dumpStage    pipeline.Session[pipeline.DumpInput, pipeline.DumpResult]
	sink         ports.DebugSink
	logger       ports.Logger
}

// New creates a new Orchestrator. Run closes the decode and dump stages.
func New(
	captureStage pipeline.Stage[pipeline.CaptureInput, pipeline.CaptureResult],
	decodeStage Decoder,
	dumpStage pipeline.Session[pipeline.DumpInput, pipeline.DumpResult],
	sink ports.DebugSink,
	logger ports.Logger,
) *Orchestrator {
	return &Orchestrator{
		captureStage: captureStage,
		decodeStage:  decodeStage,
		dumpStage:    dumpStage,
		sink:         sink,
		logger:       logger,
	}
}

// Run captures config.SampleCount samples, decodes them and dumps the frames.
// On return the device is stopped first, then the transform, then the writers.
func (o *Orchestrator) Run(ctx context.Context, config Config) (result RunResult, err error) {
	started := time.Now()
	o.logger.Info(l10n.T("Starting pipeline"))

	defer func() {
		if cerr := o.dumpStage.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close writers: %w", cerr)
		}
	}()
	defer func() {
		if cerr := o.decodeStage.Close(); cerr != nil {
			o.logger.Warn(l10n.F("Failed to release transform: %s", cerr.Error()))
		}
	}()

	// 1. Open the device
	capture, err := o.captureStage.Execute(ctx, pipeline.CaptureInput{
		DeviceIndex: config.DeviceIndex,
		Width:       config.Width,
		Height:      config.Height,
		FPS:         config.FPS,
	})
	if err != nil {
		o.logger.Error(l10n.F("Failed to open capture device: %s", err.Error()))
		return result, fmt.Errorf("capture stage: %w", err)
	}
	defer func() {
		if cerr := capture.Reader.Close(); cerr != nil {
			o.logger.Warn(l10n.F("Failed to close capture device: %s", cerr.Error()))
		}
	}()
	result.Device = capture.Device
	result.CaptureType = capture.MediaType

	// 2. Configure the transform
	session, err := o.decodeStage.Prepare(ctx, pipeline.PrepareInput{MediaType: capture.MediaType})
	if err != nil {
		o.logger.Error(l10n.F("Failed to configure transform: %s", err.Error()))
		return result, fmt.Errorf("decode stage: %w", err)
	}
	result.OutputType = session.OutputType

	if o.sink.Enabled() {
		types := pipeline.MediaTypes{Device: capture.Device, Capture: capture.MediaType, Transform: session}
		data, err := json.MarshalIndent(types, "", "  ")
		if err == nil {
			err = o.sink.SaveMediaTypesJSON(data)
		}
		if err != nil {
			o.logger.Warn(l10n.F("Failed to save media types: %s", err.Error()))
		}
	}

	// 3. Pump samples
	o.logger.Info(l10n.F("Capturing %d samples", config.SampleCount))
	for attempt := 0; attempt < config.SampleCount; attempt++ {
		sample, err := capture.Reader.ReadSample(ctx)
		if errors.Is(err, io.EOF) {
			o.logger.Info(l10n.F("Source exhausted after %d samples", result.Samples))
			break
		}
		if err != nil {
			o.logger.Error(l10n.F("Failed to read sample: %s", err.Error()))
			return result, fmt.Errorf("read sample %d: %w", attempt, err)
		}
		if sample == nil {
			result.Ticks++
			continue
		}
		last := sample.Flags&ports.FlagEndOfStream != 0
		if len(sample.Data) == 0 || sample.Flags&ports.FlagStreamTick != 0 {
			sample.Release()
			result.Ticks++
			if last {
				o.logger.Info(l10n.F("Source exhausted after %d samples", result.Samples))
				break
			}
			continue
		}

		decoded, err := o.decodeStage.Execute(ctx, pipeline.DecodeInput{Index: result.Samples, Sample: sample})
		result.Samples++
		if err != nil {
			o.logger.Error(l10n.F("Failed to decode sample: %s", err.Error()))
			return result, fmt.Errorf("decode stage: %w", err)
		}
		if decoded.Frame != nil {
			if err := o.dump(ctx, &result, decoded.Frame); err != nil {
				return result, err
			}
		}
		if last {
			o.logger.Info(l10n.F("Source exhausted after %d samples", result.Samples))
			break
		}
	}

	// 4. Collect what the transform still holds
	if !config.SkipDrain && result.Samples > 0 {
		frames, err := o.decodeStage.Drain(ctx)
		if err != nil {
			o.logger.Error(l10n.F("Failed to drain transform: %s", err.Error()))
			return result, fmt.Errorf("decode stage: %w", err)
		}
		for _, frame := range frames {
			if err := o.dump(ctx, &result, frame); err != nil {
				return result, err
			}
		}
	}

	result.Stats = o.decodeStage.Stats()
	result.Elapsed = time.Since(started)
	if result.Frames == 0 {
		o.logger.Warn(l10n.T("No frame was decoded"))
	}
	o.logger.Info(l10n.F("Decoded %d frames from %d samples", result.Frames, result.Samples))
	o.logger.Info(l10n.T("Pipeline completed successfully"))
	return result, nil
}

func (o *Orchestrator) dump(ctx context.Context, result *RunResult, frame *ports.Frame) error {
	caption := fmt.Sprintf("#%d %s %dx%d @ %s", result.Frames, ports.SubtypeNV12,
		frame.Width, frame.Height, frame.Timestamp.Round(time.Millisecond))
	dumped, err := o.dumpStage.Execute(ctx, pipeline.DumpInput{Index: result.Frames, Frame: frame, Caption: caption})
	if err != nil {
		o.logger.Error(l10n.F("Failed to write frame: %s", err.Error()))
		return fmt.Errorf("dump stage: %w", err)
	}
	if dumped.PlanesWritten {
		result.FirstFrame = frame.Timestamp
	}
	result.Frames++
	result.Paths = dumped.Paths
	return nil
}

// RunResult contains the results of a pipeline run for summary generation.
type RunResult struct {
	Device      ports.DeviceInfo
	CaptureType ports.MediaType
	OutputType  ports.MediaType

	Samples int // samples submitted to the transform
	Ticks   int // reads that returned no data
	Frames  int // frames decoded and dumped

	// FirstFrame is the timestamp of the frame whose planes were written.
	FirstFrame time.Duration
	Elapsed    time.Duration

	Stats pipeline.DecodeStats
	Paths []string
}
