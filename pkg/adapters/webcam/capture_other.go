//go:build !linux && !windows

package webcam

import "github.com/user/mjpegcap/pkg/ports"

func listDevices(fs ports.FileSystem, logger ports.Logger) ([]ports.DeviceInfo, error) {
	return nil, ErrPlatformNotSupported
}

func openDevice(info ports.DeviceInfo, logger ports.Logger) (ports.SampleReader, error) {
	return nil, ErrPlatformNotSupported
}
