// Package decode implements the MJPEG to NV12 decode stage.
package decode

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ideamans/go-l10n"

	"github.com/user/mjpegcap/pkg/driver"
	"github.com/user/mjpegcap/pkg/pipeline"
	"github.com/user/mjpegcap/pkg/ports"
)

// defaultFPS is assumed when the capture type carries no frame rate.
const defaultFPS = 30

// Stage decodes compressed samples through a transform session.
type Stage struct {
	driver *driver.Driver
	sink   ports.DebugSink
	logger ports.Logger
}

// NewStage creates a decode stage that owns transform.
func NewStage(transform ports.Transform, sink ports.DebugSink, logger ports.Logger) *Stage {
	return &Stage{
		driver: driver.New(transform, logger),
		sink:   sink,
		logger: logger.WithComponent("decode"),
	}
}

// Prepare configures and starts the transform for the capture type.
func (s *Stage) Prepare(ctx context.Context, input pipeline.PrepareInput) (pipeline.PrepareResult, error) {
	result := pipeline.PrepareResult{}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	mt := input.MediaType
	if mt.Subtype != ports.SubtypeMJPG {
		return result, fmt.Errorf("%w: decoder input must be %s, got %s",
			ports.ErrInvalidMediaType, ports.SubtypeMJPG, mt.Subtype)
	}
	fps := int(math.Round(mt.FrameRate()))
	if fps <= 0 {
		fps = defaultFPS
	}

	if err := s.driver.Find(); err != nil {
		return result, err
	}
	if err := s.driver.Configure(mt.Width, mt.Height, fps); err != nil {
		return result, err
	}
	if err := s.driver.Start(); err != nil {
		return result, err
	}

	in, out := s.driver.StreamIDs()
	result.InputType = s.driver.InputType()
	result.OutputType = s.driver.OutputType()
	result.InputStreamID = in
	result.OutputStreamID = out
	s.logger.Info(l10n.F("Decoding %s to %s", result.InputType.String(), result.OutputType.String()))
	return result, nil
}

// Execute submits one sample and returns at most one decoded frame.
// The sample is released once the transform has taken it.
func (s *Stage) Execute(ctx context.Context, input pipeline.DecodeInput) (pipeline.DecodeResult, error) {
	result := pipeline.DecodeResult{}

	if input.Index == 0 && s.sink.Enabled() {
		if err := s.sink.SaveCompressedSample(input.Index, input.Sample.Data); err != nil {
			s.logger.Warn(l10n.F("Failed to save sample %d: %s", input.Index, err.Error()))
		}
	}

	frame, err := s.driver.DecodeOneFrame(ctx, input.Sample)
	if errors.Is(err, ports.ErrNeedMoreInput) {
		s.logger.Debug(l10n.F("Sample %d accepted, no output yet", input.Index))
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("decode sample %d: %w", input.Index, err)
	}
	result.Frame = frame
	return result, nil
}

// Drain flushes the transform and returns the frames it still held.
func (s *Stage) Drain(ctx context.Context) ([]*ports.Frame, error) {
	frames, err := s.driver.Drain(ctx)
	if err != nil {
		return frames, fmt.Errorf("drain: %w", err)
	}
	if len(frames) > 0 {
		s.logger.Debug(l10n.F("Drained %d frames", len(frames)))
	}
	return frames, nil
}

// Stats returns the counters of the session.
func (s *Stage) Stats() pipeline.DecodeStats {
	st := s.driver.Stats()
	return pipeline.DecodeStats{
		Submitted:     st.Submitted,
		Produced:      st.Produced,
		NeedMoreInput: st.NeedMoreInput,
		StreamChanges: st.StreamChanges,
	}
}

// Close ends streaming and releases the transform.
func (s *Stage) Close() error {
	return s.driver.Close()
}

var _ pipeline.Session[pipeline.DecodeInput, pipeline.DecodeResult] = (*Stage)(nil)
