//go:build linux

package webcam

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/blackjack/webcam"
	"github.com/ideamans/go-l10n"

	"github.com/user/mjpegcap/pkg/ports"
)

const bufferCount = 4

func listDevices(fs ports.FileSystem, logger ports.Logger) ([]ports.DeviceInfo, error) {
	paths, err := fs.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("list video devices: %w", err)
	}
	sortDevicePaths(paths)

	var devices []ports.DeviceInfo
	for _, path := range paths {
		cam, err := webcam.Open(path)
		if err != nil {
			logger.Debug(l10n.F("Skipping %s: %s", path, err.Error()))
			continue
		}
		formats := cam.GetSupportedFormats()
		cam.Close()
		// Metadata nodes open fine but offer no pixel formats.
		if len(formats) == 0 {
			continue
		}
		devices = append(devices, ports.DeviceInfo{
			Index: len(devices),
			Name:  deviceName(fs, path),
			Path:  path,
		})
	}
	return devices, nil
}

// deviceName reads the driver-provided name from sysfs, falling back to the node name.
func deviceName(fs ports.FileSystem, path string) string {
	base := filepath.Base(path)
	data, err := fs.ReadFile(filepath.Join("/sys/class/video4linux", base, "name"))
	if err != nil {
		return base
	}
	if name := strings.TrimSpace(string(data)); name != "" {
		return name
	}
	return base
}

// v4l2Reader reads frames from a V4L2 device using memory-mapped buffers.
type v4l2Reader struct {
	cam       *webcam.Webcam
	info      ports.DeviceInfo
	logger    ports.Logger
	mediaType ports.MediaType
	streaming bool
	started   time.Time
}

func openDevice(info ports.DeviceInfo, logger ports.Logger) (ports.SampleReader, error) {
	cam, err := webcam.Open(info.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", info.Path, err)
	}
	logger.Debug(l10n.F("Opened %s (%s)", info.Name, info.Path))
	return &v4l2Reader{cam: cam, info: info, logger: logger}, nil
}

func (r *v4l2Reader) Formats() ([]ports.MediaType, error) {
	var formats []ports.MediaType
	for pf := range r.cam.GetSupportedFormats() {
		subtype := ports.FourCCFromCode(uint32(pf))
		for _, size := range r.cam.GetSupportedFrameSizes(pf) {
			formats = append(formats, ports.MediaType{
				Subtype:    subtype,
				Width:      int(size.MaxWidth),
				Height:     int(size.MaxHeight),
				Compressed: subtype == ports.SubtypeMJPG,
			})
		}
	}
	return formats, nil
}

func (r *v4l2Reader) SetMediaType(mt ports.MediaType) (ports.MediaType, error) {
	if err := checkRequest(mt); err != nil {
		return ports.MediaType{}, err
	}
	if r.streaming {
		return ports.MediaType{}, fmt.Errorf("webcam: cannot change format while streaming")
	}

	pf := webcam.PixelFormat(mt.Subtype.Code())
	if _, ok := r.cam.GetSupportedFormats()[pf]; !ok {
		return ports.MediaType{}, fmt.Errorf("%w: %s on %s", ErrFormatUnsupported, mt.Subtype, r.info.Path)
	}
	if formats, _ := r.Formats(); !hasFormat(formats, mt.Subtype, mt.Width, mt.Height) {
		r.logger.Debug(l10n.F("%s is not advertised by %s, asking the driver anyway", mt.String(), r.info.Path))
	}

	gotFormat, w, h, err := r.cam.SetImageFormat(pf, uint32(mt.Width), uint32(mt.Height))
	if err != nil {
		return ports.MediaType{}, fmt.Errorf("set format %s: %w", mt, err)
	}
	if gotFormat != pf {
		return ports.MediaType{}, fmt.Errorf("%w: device switched to %s", ErrFormatUnsupported,
			ports.FourCCFromCode(uint32(gotFormat)))
	}
	if err := r.cam.SetBufferCount(bufferCount); err != nil {
		return ports.MediaType{}, fmt.Errorf("set buffer count: %w", err)
	}

	applied := mt
	applied.Width = int(w)
	applied.Height = int(h)
	applied.Compressed = true
	r.mediaType = applied
	if applied.Width != mt.Width || applied.Height != mt.Height {
		r.logger.Warn(l10n.F("Device adjusted frame size to %dx%d", applied.Width, applied.Height))
	}
	return applied, nil
}

func (r *v4l2Reader) ReadSample(ctx context.Context) (*ports.Sample, error) {
	if r.mediaType.Subtype == "" {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.streaming {
		if err := r.cam.StartStreaming(); err != nil {
			return nil, fmt.Errorf("start streaming: %w", err)
		}
		r.streaming = true
		r.started = time.Now()
	}

	err := r.cam.WaitForFrame(uint32(readTimeout / time.Second))
	var timeout *webcam.Timeout
	if errors.As(err, &timeout) {
		r.logger.Debug(l10n.T("Stream tick"))
		return tickSample(time.Since(r.started)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("wait for frame: %w", err)
	}

	data, err := r.cam.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	if len(data) == 0 {
		return tickSample(time.Since(r.started)), nil
	}

	// The returned slice may alias a mapped buffer that the driver refills.
	data = append([]byte(nil), data...)
	sample := ports.NewSample(data, time.Since(r.started), nil)
	sample.Duration = r.mediaType.FrameDuration()
	return sample, nil
}

func (r *v4l2Reader) Close() error {
	if r.streaming {
		r.cam.StopStreaming()
		r.streaming = false
	}
	return r.cam.Close()
}
