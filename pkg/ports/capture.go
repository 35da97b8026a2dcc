package ports

import (
	"context"
	"errors"
)

// ErrDeviceNotFound is returned when the requested capture device index does not exist.
var ErrDeviceNotFound = errors.New("capture: device not found")

// DeviceInfo describes one capture device.
type DeviceInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Path  string `json:"path,omitempty"`
}

// DeviceEnumerator lists capture devices and activates them.
type DeviceEnumerator interface {
	// Devices returns the available capture devices in index order.
	Devices() ([]DeviceInfo, error)

	// Open activates the device at index and returns a pull-based reader.
	Open(index int) (SampleReader, error)
}

// SampleReader pulls compressed samples from an activated device.
type SampleReader interface {
	// Formats lists the native formats the device offers.
	Formats() ([]MediaType, error)

	// SetMediaType selects the output format of the reader and returns
	// the type actually applied.
	SetMediaType(mt MediaType) (MediaType, error)

	// ReadSample blocks until the next sample is available.
	// A nil sample with a nil error is a stream tick and carries no data.
	// io.EOF is returned when a finite source is exhausted.
	ReadSample(ctx context.Context) (*Sample, error)

	// Close stops streaming and releases the device.
	Close() error
}
