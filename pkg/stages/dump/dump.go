// Package dump implements the stage that persists decoded frames.
package dump

import (
	"context"
	"errors"
	"fmt"

	"github.com/ideamans/go-l10n"

	"github.com/user/mjpegcap/pkg/pipeline"
	"github.com/user/mjpegcap/pkg/ports"
)

// previewWidth bounds the debug preview.
const previewWidth = 640

// Stage writes the planes of the first decoded frame and, when a raw writer
// is configured, every decoded frame.
type Stage struct {
	planes   ports.FrameWriter
	raw      ports.FrameWriter
	renderer ports.Renderer
	sink     ports.DebugSink
	logger   ports.Logger

	planesWritten bool
	previewSaved  bool
}

// NewStage creates a dump stage. raw may be nil.
func NewStage(planes, raw ports.FrameWriter, renderer ports.Renderer, sink ports.DebugSink, logger ports.Logger) *Stage {
	return &Stage{
		planes:   planes,
		raw:      raw,
		renderer: renderer,
		sink:     sink,
		logger:   logger.WithComponent("dump"),
	}
}

// Execute persists one decoded frame.
func (s *Stage) Execute(ctx context.Context, input pipeline.DumpInput) (pipeline.DumpResult, error) {
	result := pipeline.DumpResult{}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if input.Frame == nil {
		return result, fmt.Errorf("dump frame %d: no frame", input.Index)
	}

	if !s.planesWritten {
		if err := s.planes.WriteFrame(input.Frame); err != nil {
			return result, fmt.Errorf("write planes: %w", err)
		}
		s.planesWritten = true
		result.PlanesWritten = true
	}

	if s.raw != nil {
		if err := s.raw.WriteFrame(input.Frame); err != nil {
			return result, fmt.Errorf("write raw frame %d: %w", input.Index, err)
		}
		result.RawWritten = true
	}

	if !s.previewSaved && s.sink.Enabled() {
		img := s.renderer.Preview(input.Frame, input.Caption, previewWidth)
		if err := s.sink.SavePreview(img); err != nil {
			s.logger.Warn(l10n.F("Failed to save preview: %s", err.Error()))
		}
		s.previewSaved = true
	}

	result.Paths = s.Paths()
	return result, nil
}

// Paths returns every file written so far.
func (s *Stage) Paths() []string {
	paths := append([]string(nil), s.planes.Paths()...)
	if s.raw != nil {
		paths = append(paths, s.raw.Paths()...)
	}
	return paths
}

// Close closes the writers.
func (s *Stage) Close() error {
	err := s.planes.Close()
	if s.raw != nil {
		err = errors.Join(err, s.raw.Close())
	}
	return err
}

var _ pipeline.Session[pipeline.DumpInput, pipeline.DumpResult] = (*Stage)(nil)
