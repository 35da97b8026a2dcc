//go:build !windows

package mjpegmft

import "github.com/user/mjpegcap/pkg/ports"

// newHardware reports that no decoder MFT exists outside Windows.
func newHardware(clsid string, logger ports.Logger) (ports.Transform, error) {
	return nil, ErrPlatformNotSupported
}
