// Package capture implements the device capture stage.
package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/ideamans/go-l10n"

	"github.com/user/mjpegcap/pkg/pipeline"
	"github.com/user/mjpegcap/pkg/ports"
)

// ErrNoMJPEG is returned when the device lists formats but none of them is MJPEG.
var ErrNoMJPEG = errors.New("capture: device does not offer MJPEG")

// Stage opens a capture device and negotiates an MJPEG output type.
type Stage struct {
	devices ports.DeviceEnumerator
	logger  ports.Logger
}

// NewStage creates a new capture stage.
func NewStage(devices ports.DeviceEnumerator, logger ports.Logger) *Stage {
	return &Stage{
		devices: devices,
		logger:  logger.WithComponent("capture"),
	}
}

// Execute opens the device at input.DeviceIndex. The caller owns the returned
// reader and must close it.
func (s *Stage) Execute(ctx context.Context, input pipeline.CaptureInput) (pipeline.CaptureResult, error) {
	result := pipeline.CaptureResult{}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	devices, err := s.devices.Devices()
	if err != nil {
		return result, fmt.Errorf("enumerate devices: %w", err)
	}
	if input.DeviceIndex < 0 || input.DeviceIndex >= len(devices) {
		return result, fmt.Errorf("%w: index %d of %d devices",
			ports.ErrDeviceNotFound, input.DeviceIndex, len(devices))
	}
	device := devices[input.DeviceIndex]
	s.logger.Info(l10n.F("Using capture device %d: %s", device.Index, device.Name))

	reader, err := s.devices.Open(device.Index)
	if err != nil {
		return result, fmt.Errorf("open %s: %w", device.Name, err)
	}

	applied, err := s.negotiate(reader, input)
	if err != nil {
		reader.Close()
		return result, err
	}
	s.logger.Info(l10n.F("Capture format: %s", applied.String()))

	result.Device = device
	result.MediaType = applied
	result.Reader = reader
	return result, nil
}

func (s *Stage) negotiate(reader ports.SampleReader, input pipeline.CaptureInput) (ports.MediaType, error) {
	formats, err := reader.Formats()
	if err != nil {
		return ports.MediaType{}, fmt.Errorf("list formats: %w", err)
	}
	mjpeg := 0
	for _, f := range formats {
		s.logger.Debug(l10n.F("Native format: %s", f.String()))
		if f.Subtype == ports.SubtypeMJPG {
			mjpeg++
		}
	}
	if len(formats) > 0 && mjpeg == 0 {
		return ports.MediaType{}, ErrNoMJPEG
	}

	request := ports.MediaType{
		Subtype:      ports.SubtypeMJPG,
		Width:        input.Width,
		Height:       input.Height,
		FrameRateNum: input.FPS,
		FrameRateDen: 1,
		Compressed:   true,
	}
	applied, err := reader.SetMediaType(request)
	if err != nil {
		return ports.MediaType{}, fmt.Errorf("set media type %s: %w", request, err)
	}
	if applied.Subtype != ports.SubtypeMJPG {
		return ports.MediaType{}, fmt.Errorf("%w: device applied %s", ErrNoMJPEG, applied.Subtype)
	}
	if applied.FrameRateNum == 0 {
		applied.FrameRateNum, applied.FrameRateDen = request.FrameRateNum, request.FrameRateDen
	}
	return applied, nil
}
