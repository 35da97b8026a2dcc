// Package mjpegmft provides asynchronous MJPEG to NV12 decode transforms.
//
// Two backends implement ports.Transform:
//   - hardware: a Media Foundation transform selected by CLSID (Windows only)
//   - software: image/jpeg running on a worker goroutine (all platforms)
package mjpegmft

import (
	"errors"
	"fmt"

	"github.com/ideamans/go-l10n"

	"github.com/user/mjpegcap/pkg/adapters/logger"
	"github.com/user/mjpegcap/pkg/ports"
)

// Backend names the decoding implementation behind a transform.
type Backend string

const (
	// BackendAuto tries the hardware transform and falls back to software.
	BackendAuto Backend = "auto"
	// BackendHardware uses the platform decoder MFT.
	BackendHardware Backend = "hardware"
	// BackendSoftware uses the pure Go decoder.
	BackendSoftware Backend = "software"
)

// DefaultCLSID is the AMD MJPEG decoder MFT.
const DefaultCLSID = "687CBC51-25DA-4FFC-A678-1E64943285A7"

var (
	// ErrPlatformNotSupported is returned when the hardware backend is unavailable.
	ErrPlatformNotSupported = errors.New("mjpegmft: hardware transform not supported on this platform")

	// ErrUnknownBackend is returned for an unrecognised backend name.
	ErrUnknownBackend = errors.New("mjpegmft: unknown backend")
)

// Options configures transform creation.
type Options struct {
	// Backend selects the implementation. Empty means BackendAuto.
	Backend Backend
	// CLSID identifies the hardware MFT. Empty means DefaultCLSID.
	CLSID string
	// Logger receives transform diagnostics. Nil discards them.
	Logger ports.Logger
}

// ParseBackend converts a config or flag value into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case "", BackendAuto:
		return BackendAuto, nil
	case BackendHardware, BackendSoftware:
		return Backend(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// New creates a transform and reports which backend was selected.
//
// The selection flow:
//   - hardware: the MFT named by CLSID, or an error
//   - software: the Go decoder
//   - auto: hardware, then software when the MFT cannot be created
func New(opts Options) (ports.Transform, Backend, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoop()
	}
	log = log.WithComponent("mjpegmft")

	clsid := opts.CLSID
	if clsid == "" {
		clsid = DefaultCLSID
	}

	backend := opts.Backend
	if backend == "" {
		backend = BackendAuto
	}

	switch backend {
	case BackendSoftware:
		return NewSoftware(log), BackendSoftware, nil
	case BackendHardware:
		t, err := newHardware(clsid, log)
		if err != nil {
			return nil, "", err
		}
		return t, BackendHardware, nil
	case BackendAuto:
		t, err := newHardware(clsid, log)
		if err == nil {
			return t, BackendHardware, nil
		}
		log.Info(l10n.F("Hardware decoder unavailable (%s), using software decoder", err.Error()))
		return NewSoftware(log), BackendSoftware, nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
