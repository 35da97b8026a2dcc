// Package webcam opens capture devices through the platform capture subsystem
// and reads MJPEG samples from them.
//   - Linux: V4L2 through github.com/blackjack/webcam
//   - Windows: Media Foundation source reader
package webcam

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/user/mjpegcap/pkg/ports"
)

var (
	// ErrPlatformNotSupported is returned when no capture backend exists for this platform.
	ErrPlatformNotSupported = errors.New("webcam: platform not supported")

	// ErrFormatUnsupported is returned when the device cannot deliver the requested type.
	ErrFormatUnsupported = errors.New("webcam: format not supported by device")

	// ErrNotConfigured is returned when reading before SetMediaType.
	ErrNotConfigured = errors.New("webcam: media type not set")
)

// readTimeout bounds a single wait for a frame; expiry is reported as a stream tick.
const readTimeout = time.Second

// Enumerator implements ports.DeviceEnumerator over the local capture devices.
type Enumerator struct {
	fs     ports.FileSystem
	logger ports.Logger
}

// New creates an enumerator. fs is used to discover device nodes where the
// platform exposes them as files.
func New(fs ports.FileSystem, logger ports.Logger) *Enumerator {
	return &Enumerator{
		fs:     fs,
		logger: logger.WithComponent("webcam"),
	}
}

// Devices returns the capture devices in index order.
func (e *Enumerator) Devices() ([]ports.DeviceInfo, error) {
	return listDevices(e.fs, e.logger)
}

// Open activates the device at index.
func (e *Enumerator) Open(index int) (ports.SampleReader, error) {
	devices, err := e.Devices()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(devices) {
		return nil, fmt.Errorf("%w: index %d of %d", ports.ErrDeviceNotFound, index, len(devices))
	}
	return openDevice(devices[index], e.logger)
}

// checkRequest validates a requested capture type before it reaches the device.
func checkRequest(mt ports.MediaType) error {
	if mt.Subtype != ports.SubtypeMJPG {
		return fmt.Errorf("%w: %s", ErrFormatUnsupported, mt.Subtype)
	}
	if mt.Width <= 0 || mt.Height <= 0 {
		return fmt.Errorf("%w: frame size %dx%d", ErrFormatUnsupported, mt.Width, mt.Height)
	}
	return nil
}

// hasFormat reports whether formats offers subtype at exactly width x height.
func hasFormat(formats []ports.MediaType, subtype ports.FourCC, width, height int) bool {
	for _, f := range formats {
		if f.Subtype == subtype && f.Width == width && f.Height == height {
			return true
		}
	}
	return false
}

// sortDevicePaths orders /dev/videoN paths by their numeric suffix.
func sortDevicePaths(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		ni, oki := deviceNumber(paths[i])
		nj, okj := deviceNumber(paths[j])
		if oki && okj {
			return ni < nj
		}
		return paths[i] < paths[j]
	})
}

func deviceNumber(path string) (int, bool) {
	base := filepath.Base(path)
	n, err := strconv.Atoi(strings.TrimLeft(base, "abcdefghijklmnopqrstuvwxyz"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// tickSample reports a gap in the stream at timestamp.
func tickSample(timestamp time.Duration) *ports.Sample {
	sample := ports.NewSample(nil, timestamp, nil)
	sample.Flags = ports.FlagStreamTick
	return sample
}
