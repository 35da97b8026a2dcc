// Package nullsink provides a no-op debug sink implementation.
package nullsink

import (
	"image"

	"github.com/user/mjpegcap/pkg/ports"
)

// Sink discards all debug output. It is used when --debug is off.
type Sink struct{}

// New creates a new NullSink.
func New() *Sink {
	return &Sink{}
}

// Enabled returns false as this sink discards all output.
func (s *Sink) Enabled() bool {
	return false
}

// SaveMediaTypesJSON does nothing.
func (s *Sink) SaveMediaTypesJSON(data []byte) error {
	return nil
}

// SaveCompressedSample does nothing.
func (s *Sink) SaveCompressedSample(index int, data []byte) error {
	return nil
}

// SavePreview does nothing.
func (s *Sink) SavePreview(img image.Image) error {
	return nil
}

var _ ports.DebugSink = (*Sink)(nil)
